package roverclient

import (
	"fmt"
	"strings"
	"time"
)

// VerificationOptions controls how long VerifyCalibration keeps polling.
type VerificationOptions struct {
	MaxRetries int

	// InitialDelay gives the rover time to persist the form.
	InitialDelay time.Duration

	RetryDelay            time.Duration
	UseExponentialBackoff bool
	MaxRetryDelay         time.Duration
}

// DefaultVerificationOptions returns the options used by the CLI.
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:            3,
		InitialDelay:          500 * time.Millisecond,
		RetryDelay:            1 * time.Second,
		UseExponentialBackoff: true,
		MaxRetryDelay:         5 * time.Second,
	}
}

// VerificationResult reports the outcome of a verification.
type VerificationResult struct {
	Success    bool
	Attempts   int
	Actual     *Status
	Mismatches []string
	Error      error
}

// VerifyCalibration polls /data.json until the servo limits match expected.
// Wi-Fi settings cannot be verified this way: the rover drops off the
// network while it applies them.
func (c *Client) VerifyCalibration(expected Calibration, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}
	result := &VerificationResult{}

	time.Sleep(opts.InitialDelay)
	delay := opts.RetryDelay

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result.Attempts++
		if attempt > 0 {
			time.Sleep(delay)
			if opts.UseExponentialBackoff {
				delay *= 2
				if delay > opts.MaxRetryDelay {
					delay = opts.MaxRetryDelay
				}
			}
		}

		status, err := c.Status()
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: failed to read status: %w", attempt+1, err)
			continue
		}
		result.Actual = status
		result.Mismatches = calibrationMismatches(expected, status)
		if len(result.Mismatches) == 0 {
			result.Success = true
			result.Error = nil
			return result
		}
		result.Error = fmt.Errorf("verification failed after %d attempts: %s",
			result.Attempts, strings.Join(result.Mismatches, "; "))
	}
	return result
}

// CalibrateAndVerify submits cal and then verifies it.
func (c *Client) CalibrateAndVerify(cal Calibration, opts *VerificationOptions) *VerificationResult {
	if err := c.Calibrate(cal); err != nil {
		return &VerificationResult{Error: fmt.Errorf("calibrate failed: %w", err)}
	}
	return c.VerifyCalibration(cal, opts)
}

func calibrationMismatches(expected Calibration, actual *Status) []string {
	var mismatches []string
	for _, name := range []string{ServoSteering, ServoAux} {
		sc, ok := expected[name]
		if !ok {
			continue
		}
		got, ok := actual.Limits[name]
		if !ok {
			mismatches = append(mismatches, name+": not reported")
			continue
		}
		if r := sc.PulseWidth; r != nil && (got.MinPW != r.Min || got.MaxPW != r.Max) {
			mismatches = append(mismatches, fmt.Sprintf("%s pulse width: expected %s, got %d,%d", name, r, got.MinPW, got.MaxPW))
		}
		if r := sc.Degrees; r != nil && (got.MinDeg != r.Min || got.MaxDeg != r.Max) {
			mismatches = append(mismatches, fmt.Sprintf("%s degrees: expected %s, got %d,%d", name, r, got.MinDeg, got.MaxDeg))
		}
	}
	return mismatches
}
