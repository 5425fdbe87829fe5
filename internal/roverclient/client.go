package roverclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/rover/internal/version"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 10 * time.Second

	// ScanTimeout covers a blocking active scan on the rover.
	ScanTimeout = 20 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first retry.
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps exponential backoff.
	DefaultMaxRetryDelay = 30 * time.Second
)

// Rover HTTP paths.
const (
	PathStatus       = "/data.json"
	PathConnectivity = "/captive.json"
	PathScan         = "/scan.json"
	PathProvision    = "/captive_portal"
	PathCalibrate    = "/calibrate"
	PathRestart      = "/restart"
	PathControl      = "/ws"
)

// Client talks to one rover's HTTP surface.
type Client struct {
	// BaseURL is the rover's base URL (e.g. "http://192.168.1.42:80")
	BaseURL string

	// HTTPClient does not follow redirects: form posts answer 302.
	HTTPClient *http.Client

	MaxRetries            int
	RetryDelay            time.Duration
	MaxRetryDelay         time.Duration
	UseExponentialBackoff bool
}

// NewClient returns a client for the rover at host:port.
func NewClient(host string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL returns a client for a full base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behaviour.
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// ControlURL returns the websocket URL of the control channel.
func (c *Client) ControlURL() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	u.Scheme = "ws"
	if strings.HasPrefix(c.BaseURL, "https://") {
		u.Scheme = "wss"
	}
	u.Path = PathControl
	return u.String()
}

// retry runs attempt until it succeeds, fails with a non-retryable error or
// the retries run out.
func (c *Client) retry(attempt func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			time.Sleep(delay)
			if c.UseExponentialBackoff {
				delay *= 2
				if delay > c.MaxRetryDelay {
					delay = c.MaxRetryDelay
				}
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) getJSON(path string, timeout time.Duration, out any) error {
	return c.retry(func() error {
		req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
		if err != nil {
			return NewNetworkError("failed to create GET request", err)
		}
		req.Header.Set("User-Agent", version.UserAgent())
		client := c.HTTPClient
		if timeout > 0 && timeout > client.Timeout {
			cc := *client
			cc.Timeout = timeout
			client = &cc
		}

		resp, err := client.Do(req)
		if err != nil {
			return NewNetworkError("GET "+path+" failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return NewHTTPError(resp.StatusCode, fmt.Sprintf("GET %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewParseError("failed to parse "+path, err)
		}
		return nil
	})
}

// postForm posts form and accepts 2xx or a redirect.
func (c *Client) postForm(path string, form url.Values) error {
	return c.retry(func() error {
		req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
		if err != nil {
			return NewNetworkError("failed to create POST request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return NewNetworkError("POST "+path+" failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return NewHTTPError(resp.StatusCode, fmt.Sprintf("POST %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body))))
		}
		return nil
	})
}

// Ping checks that the rover answers /data.json.
func (c *Client) Ping() error {
	_, err := c.Status()
	return err
}

// Status fetches /data.json.
func (c *Client) Status() (*Status, error) {
	var s Status
	if err := c.getJSON(PathStatus, 0, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Connectivity fetches the stored connectivity settings.
func (c *Client) Connectivity() (*Connectivity, error) {
	var conn Connectivity
	if err := c.getJSON(PathConnectivity, 0, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// Scan asks the rover for an active scan. Networks are in the rover's scan
// order.
func (c *Client) Scan() ([]Network, error) {
	var nets []Network
	if err := c.getJSON(PathScan, ScanTimeout, &nets); err != nil {
		return nil, err
	}
	return nets, nil
}

// SetWiFi validates and submits w. The rover applies it asynchronously and
// may drop off the network while it reconnects.
func (c *Client) SetWiFi(w *WiFiSettings) error {
	if errs := ValidateWiFiSettings(w); len(errs) > 0 {
		return errs[0]
	}
	return c.postForm(PathProvision, w.ToFormData())
}

// Calibrate validates and submits a calibration.
func (c *Client) Calibrate(cal Calibration) error {
	if len(cal) == 0 {
		return NewValidationError("nothing to calibrate")
	}
	if errs := ValidateCalibration(cal); len(errs) > 0 {
		return errs[0]
	}
	return c.postForm(PathCalibrate, cal.ToFormData())
}

// Restart asks the rover to restart. It is not retried.
func (c *Client) Restart() error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+PathRestart, nil)
	if err != nil {
		return NewNetworkError("failed to create restart request", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError("restart request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("restart returned %d", resp.StatusCode))
	}
	return nil
}
