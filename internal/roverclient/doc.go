// Package roverclient is the operator-side client for a rover's HTTP
// surface.
//
// It reads /data.json, /captive.json and /scan.json and submits the
// provisioning and calibration forms, retrying transport failures with
// exponential backoff. Every error is a *RoverError carrying an ErrorType so
// the CLI can print a troubleshooting hint.
//
// # Usage Example
//
//	client := roverclient.NewClient("192.168.1.42", 80)
//	status, err := client.Status()
//	if err != nil {
//	    fmt.Println(roverclient.GetTroubleshootingHint(err))
//	    return err
//	}
//	fmt.Println(status.Summary())
//
// Submissions are validated before they are sent: SSIDs are 1-32 bytes,
// passphrases empty or 8-63 characters, static addresses dotted IPv4 and
// mDNS hostnames a single DNS label.
package roverclient
