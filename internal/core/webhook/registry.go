package webhook

import (
	"context"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
)

// Endpoint is one registered webhook target for a category.
type Endpoint struct {
	ID        string
	Category  job.Category
	URL       string
	IsActive  bool
	UpdatedAt time.Time
}

// Registry resolves the active endpoints for a category. Implementations
// must return endpoints ordered most-recently-updated first; the dispatcher
// treats the first as the primary. Nothing enforces a single active endpoint
// per category, but callers that need strict semantics (the retry engine)
// rely on there being one.
type Registry interface {
	ActiveEndpoints(ctx context.Context, category job.Category) ([]Endpoint, error)
}
