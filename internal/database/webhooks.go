package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/webhook"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrEndpointNotFound = errors.New("webhook endpoint not found")

const endpointColumns = `id, category, url, is_active, updated_at`

func scanEndpoint(row pgx.Row) (*webhook.Endpoint, error) {
	var ep webhook.Endpoint
	var category string
	err := row.Scan(&ep.ID, &category, &ep.URL, &ep.IsActive, &ep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEndpointNotFound
		}
		return nil, err
	}
	ep.Category = job.Category(category)
	return &ep, nil
}

// ActiveEndpoints implements webhook.Registry. Most recently updated first;
// the dispatcher treats the head as the primary endpoint.
func (s *Store) ActiveEndpoints(ctx context.Context, category job.Category) ([]webhook.Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+endpointColumns+`
		FROM webhook_endpoints
		WHERE category = $1 AND is_active
		ORDER BY updated_at DESC`,
		string(category))
	if err != nil {
		return nil, fmt.Errorf("list active endpoints: %w", err)
	}
	defer rows.Close()

	var out []webhook.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ep)
	}
	return out, rows.Err()
}

func (s *Store) ListEndpoints(ctx context.Context) ([]webhook.Endpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+endpointColumns+` FROM webhook_endpoints ORDER BY category, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []webhook.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ep)
	}
	return out, rows.Err()
}

func (s *Store) CreateEndpoint(ctx context.Context, category job.Category, url string, isActive bool) (*webhook.Endpoint, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_endpoints (id, category, url, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+endpointColumns,
		uuid.NewString(), string(category), url, isActive)
	return scanEndpoint(row)
}

func (s *Store) UpdateEndpoint(ctx context.Context, id, url string, isActive bool) (*webhook.Endpoint, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE webhook_endpoints
		SET url = $2, is_active = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+endpointColumns,
		id, url, isActive)
	return scanEndpoint(row)
}

func (s *Store) DeleteEndpoint(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEndpointNotFound
	}
	return nil
}
