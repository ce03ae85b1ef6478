package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// infoPath is the AR.IO gateway info endpoint probed on every check.
const infoPath = "/ar-io/info"

// CheckResult is the outcome of one gateway probe.
type CheckResult struct {
	Success      bool
	ResponseTime time.Duration
	StatusCode   int
	Error        string
}

// Checker probes AR.IO gateways over HTTPS.
type Checker struct {
	httpClient *http.Client
	scheme     string
}

// NewChecker creates a checker with a bounded per-probe timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		httpClient: &http.Client{Timeout: timeout},
		scheme:     "https",
	}
}

// Check probes one gateway by FQDN. Connection failures and non-2xx
// responses are both reported as unsuccessful results, not errors; the
// result always carries the measured response time.
func (c *Checker) Check(ctx context.Context, fqdn string) CheckResult {
	url := fmt.Sprintf("%s://%s%s", c.scheme, fqdn, infoPath)

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CheckResult{
			ResponseTime: time.Since(start),
			Error:        fmt.Sprintf("create request: %v", err),
		}
	}

	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return CheckResult{
			ResponseTime: elapsed,
			Error:        err.Error(),
		}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result := CheckResult{
		ResponseTime: elapsed,
		StatusCode:   resp.StatusCode,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
	} else {
		result.Error = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
	}
	return result
}
