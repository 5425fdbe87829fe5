// Package discovery finds rovers on the local network over mDNS.
//
// Rovers advertise an "_http._tcp" service carrying the TXT record
// "model=rover"; other HTTP services on the segment are ignored. The
// firmware version is read from the "fw" record.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	rovers, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range rovers {
//	    fmt.Println(r, r.Firmware)
//	}
//
// # Network Requirements
//
//   - Multicast must be enabled on the interface
//   - The rover must be on the same network segment
//   - UDP 5353 must not be filtered
package discovery
