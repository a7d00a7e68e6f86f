package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCategory = errors.New("invalid webhook category")
	ErrNoEndpoint      = errors.New("no active webhook endpoint configured")
)

const defaultTimeout = 30 * time.Second

// Dispatcher delivers job payloads to the external workflow system. It
// persists nothing; recording whether a dispatch was attempted or failed is
// the caller's responsibility.
type Dispatcher struct {
	registry Registry
	client   *http.Client
}

func NewDispatcher(registry Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
	}
}

// Dispatch POSTs the payload to every active endpoint for the category.
// Endpoints are attempted independently; the call succeeds iff the primary
// (most recently updated) endpoint accepted the payload.
func (d *Dispatcher) Dispatch(ctx context.Context, category job.Category, payload Payload) error {
	if _, ok := job.Describe(category); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	endpoints, err := d.registry.ActiveEndpoints(ctx, category)
	if err != nil {
		return fmt.Errorf("look up webhook endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("%w for category %s: register one in webhook settings", ErrNoEndpoint, category)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var primaryErr error
	for i, ep := range endpoints {
		err := d.post(ctx, ep.URL, body)
		if err != nil {
			log.Warn().Err(err).
				Str("category", string(category)).
				Str("endpoint_id", ep.ID).
				Msg("webhook delivery failed")
		}
		if i == 0 {
			primaryErr = err
		}
	}

	if primaryErr != nil {
		return fmt.Errorf("dispatch %s webhook: %w", category, primaryErr)
	}
	return nil
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}
