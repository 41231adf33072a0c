package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/soundcheck/internal/version"
)

// ReachableProbe considers the server ready as soon as it answers HTTP
// at all. Any status code counts, including 4xx/5xx: an error page
// still proves the listener is up. Demo servers without a model listing
// need exactly this signal.
type ReachableProbe struct {
	url    string
	client *http.Client
}

// NewReachable creates a plain-reachability probe for the given URL.
func NewReachable(url string, timeout time.Duration) *ReachableProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ReachableProbe{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the probe name.
func (p *ReachableProbe) Name() string {
	return "http-reachable"
}

// Check issues one GET against the target.
func (p *ReachableProbe) Check(ctx context.Context) *Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Waiting(fmt.Sprintf("build request: %v", err)).WithLatency(time.Since(start))
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Waiting(err.Error()).WithLatency(latency)
	}
	defer resp.Body.Close()

	return Ready(fmt.Sprintf("HTTP %d from %s", resp.StatusCode, p.url)).
		WithDetail("status_code", resp.StatusCode).
		WithLatency(latency)
}
