package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// prober polls a liveness endpoint on a fixed interval until it answers
// successfully. It is always driven by a context so a torn-down client
// cannot leak a perpetual timer.
type prober struct {
	url      string
	interval time.Duration
	client   *http.Client
}

func newProber(url string, interval, timeout time.Duration) *prober {
	return &prober{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
	}
}

// waitReachable blocks until a probe succeeds or ctx is cancelled. The first
// probe fires immediately; subsequent ones on the configured interval.
func (p *prober) waitReachable(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.probe(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// probe issues one bounded request against the liveness endpoint.
func (p *prober) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		slog.Error("building probe request", "url", p.url, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest
}
