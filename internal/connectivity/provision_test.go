package connectivity

import (
	"context"
	"net"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rover/internal/events"
	"github.com/muurk/rover/internal/store"
)

// currentForm renders c the way the portal form submits it.
func currentForm(c Config) url.Values {
	form := url.Values{}
	form.Set(FieldSSID, c.SSID)
	form.Set(FieldPassword, "")
	form.Set(FieldStaticIP, c.StaticIPString())
	form.Set(FieldMDNSHostname, c.MDNSHostname)
	form.Set(FieldServiceName, c.ServiceName)
	if c.UseStaticIP {
		form.Set(FieldUseStaticIP, "true")
	}
	if c.UseMDNS {
		form.Set(FieldUseMDNS, "true")
	}
	return form
}

func TestDiffFormRules(t *testing.T) {
	base := DefaultConfig()
	base.SSID = "Home"
	base.Password = "Secret1"

	tests := []struct {
		name      string
		edit      func(url.Values)
		fields    []string
		reconnect bool
		mdns      bool
	}{
		{name: "unchanged", edit: func(url.Values) {}},
		{
			name:      "ssid",
			edit:      func(f url.Values) { f.Set(FieldSSID, "Work") },
			fields:    []string{FieldSSID},
			reconnect: true,
		},
		{
			name: "empty password keeps stored one",
			edit: func(f url.Values) { f.Set(FieldPassword, "") },
		},
		{
			name:      "password",
			edit:      func(f url.Values) { f.Set(FieldPassword, "Other123") },
			fields:    []string{FieldPassword},
			reconnect: true,
		},
		{
			name:   "static ip ignored while dhcp",
			edit:   func(f url.Values) { f.Set(FieldStaticIP, "192.168.1.50") },
			fields: []string{FieldStaticIP},
		},
		{
			name: "static ip enabled",
			edit: func(f url.Values) {
				f.Set(FieldUseStaticIP, "true")
				f.Set(FieldStaticIP, "192.168.1.50")
			},
			fields:    []string{FieldUseStaticIP, FieldStaticIP},
			reconnect: true,
		},
		{
			name: "bad static ip ignored",
			edit: func(f url.Values) { f.Set(FieldStaticIP, "300.1.1.1") },
		},
		{
			name:   "mdns unchecked",
			edit:   func(f url.Values) { f.Del(FieldUseMDNS) },
			fields: []string{FieldUseMDNS},
			mdns:   true,
		},
		{
			name:   "service name",
			edit:   func(f url.Values) { f.Set(FieldServiceName, "Rover Two") },
			fields: []string{FieldServiceName},
			mdns:   true,
		},
		{
			name: "hostname without mdns",
			edit: func(f url.Values) {
				f.Del(FieldUseMDNS)
				f.Set(FieldMDNSHostname, "scout")
			},
			fields: []string{FieldUseMDNS, FieldMDNSHostname},
			mdns:   true,
		},
		{
			name: "oversized ssid ignored",
			edit: func(f url.Values) { f.Set(FieldSSID, "0123456789012345678901234567890123") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base.clone()
			form := currentForm(c)
			tt.edit(form)

			ch := diffForm(&c, form)
			assert.Equal(t, tt.fields, ch.Fields)
			assert.Equal(t, tt.reconnect, ch.Reconnect, "reconnect")
			assert.Equal(t, tt.mdns, ch.MDNS, "mdns")
		})
	}
}

func TestDiffFormHostnameOnlyRestartsWhenEnabled(t *testing.T) {
	c := DefaultConfig()
	c.UseMDNS = false
	form := currentForm(c)
	form.Set(FieldMDNSHostname, "scout")

	ch := diffForm(&c, form)
	assert.Equal(t, []string{FieldMDNSHostname}, ch.Fields)
	assert.False(t, ch.MDNS)
	assert.Equal(t, "scout", c.MDNSHostname)
}

func TestDiffFormEmptySubmission(t *testing.T) {
	c := DefaultConfig()
	ch := diffForm(&c, url.Values{})
	assert.Empty(t, ch.Fields)
	assert.True(t, c.UseMDNS, "empty body must not clear checkboxes")
}

func TestApplyProvisioningInCaptiveAP(t *testing.T) {
	backend := store.NewMemory()
	h, err := store.OpenNamespace(backend, Namespace)
	require.NoError(t, err)

	f := newFixture(t, &stubRadio{}, h, nil)
	require.NoError(t, f.m.Initialize(context.Background()))
	require.Equal(t, CaptiveAP, f.m.Mode())

	form := currentForm(f.m.Config())
	form.Set(FieldSSID, "Home")
	form.Set(FieldPassword, "Secret1")
	form.Set(FieldUseStaticIP, "true")
	form.Set(FieldStaticIP, "192.168.1.50")

	ch, err := f.m.ApplyProvisioning(form)
	require.NoError(t, err)
	assert.Equal(t, events.SwitchToStation, ch.Requested)

	pending := f.m.Signal().Get()
	assert.True(t, pending.Has(events.SwitchToStation))
	assert.False(t, pending.Has(events.Reconnect))

	assert.Equal(t, "Home", h.GetString(KeySSID, ""))
	assert.True(t, h.GetBool(KeyUseStaticIP, false))
	assert.True(t, net.IPv4(192, 168, 1, 50).Equal(f.m.Config().StaticIP))
}

func TestApplyProvisioningEmptySSIDStaysInCaptiveAP(t *testing.T) {
	f := newFixture(t, &stubRadio{}, nil, nil)
	require.NoError(t, f.m.Initialize(context.Background()))

	form := currentForm(f.m.Config())
	form.Set(FieldMDNSHostname, "scout")

	ch, err := f.m.ApplyProvisioning(form)
	require.NoError(t, err)
	assert.Zero(t, ch.Requested)
	assert.Zero(t, f.m.Signal().Get()&events.Requests)
}

func TestApplyProvisioningInStation(t *testing.T) {
	f, _ := stationFixture(t, nil)

	form := currentForm(f.m.Config())
	form.Set(FieldPassword, "NewSecret9")
	form.Set(FieldServiceName, "Scout")

	ch, err := f.m.ApplyProvisioning(form)
	require.NoError(t, err)
	assert.Equal(t, events.Reconnect|events.MdnsChanged, ch.Requested)
	assert.Equal(t, events.Reconnect|events.MdnsChanged, f.m.Signal().Get()&events.Requests)
}

func TestApplyProvisioningUnchangedRequestsNothing(t *testing.T) {
	backend := store.NewMemory()
	h, err := store.OpenNamespace(backend, Namespace)
	require.NoError(t, err)

	f := newFixture(t, &stubRadio{}, h, func(o *Options) {
		o.Defaults.SSID = "Home"
		o.Defaults.Password = "Secret1"
	})
	require.NoError(t, f.m.Initialize(context.Background()))

	form := currentForm(f.m.Config())
	_, err = f.m.ApplyProvisioning(form)
	require.NoError(t, err)
	saves := backend.Saves()

	ch, err := f.m.ApplyProvisioning(form)
	require.NoError(t, err)
	assert.Empty(t, ch.Fields)
	assert.Zero(t, ch.Requested)
	assert.Equal(t, saves, backend.Saves(), "unchanged submission must not write")
}

func TestConcurrentPersistCommitsOnce(t *testing.T) {
	backend := store.NewMemory()
	h, err := store.OpenNamespace(backend, Namespace)
	require.NoError(t, err)

	f := newFixture(t, &stubRadio{}, h, nil)
	require.NoError(t, f.m.Initialize(context.Background()))
	_, err = f.m.Persist()
	require.NoError(t, err)
	writes, saves := h.Writes(), backend.Saves()

	f.m.Update(func(c *Config) {
		c.SSID = "Home"
		c.Password = "Secret1"
	})

	const callers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.m.Persist()
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, total, "each changed field is written once")
	assert.Equal(t, writes+2, h.Writes())
	assert.Equal(t, saves+1, backend.Saves(), "one commit for one change")
	assert.Equal(t, "Home", h.GetString(KeySSID, ""))
}
