package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Prober checks the workspace API heartbeat and records the outcome in a
// Store. It is meant to run as a cron job.
type Prober struct {
	url    string
	client *http.Client
	store  *Store
	logger *slog.Logger
}

func NewProber(heartbeatURL string, client *http.Client, store *Store, logger *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		url:    heartbeatURL,
		client: client,
		store:  store,
		logger: logger.With(slog.String("component", "connectivity")),
	}
}

// Probe performs one heartbeat request. Unreachable upstream is a state,
// not a job failure, so only request construction errors are returned.
func (p *Prober) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	online := false
	resp, err := p.client.Do(req)
	if err == nil {
		resp.Body.Close()
		online = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	// Shutdown is not an outage; a timeout is.
	if !online && errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}

	was := p.store.Online()
	p.store.Set(online)
	if was != online {
		if online {
			p.logger.Info("Workspace API reachable")
		} else {
			p.logger.Warn("Workspace API unreachable", "error", err)
		}
	}
	return nil
}
