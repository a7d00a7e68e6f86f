package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/webhook"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/danielgtaylor/huma/v2"
)

// WebhooksHandler manages the endpoint registrations the dispatcher
// resolves. Admin only.
type WebhooksHandler struct {
	store *database.Store
}

func NewWebhooksHandler(store *database.Store) *WebhooksHandler {
	return &WebhooksHandler{store: store}
}

type EndpointBody struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	URL       string    `json:"url"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newEndpointBody(ep *webhook.Endpoint) EndpointBody {
	return EndpointBody{
		ID:        ep.ID,
		Category:  string(ep.Category),
		URL:       ep.URL,
		IsActive:  ep.IsActive,
		UpdatedAt: ep.UpdatedAt,
	}
}

type ListEndpointsOutput struct {
	Body []EndpointBody
}

func (h *WebhooksHandler) List(ctx context.Context, _ *struct{}) (*ListEndpointsOutput, error) {
	endpoints, err := h.store.ListEndpoints(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	out := make([]EndpointBody, 0, len(endpoints))
	for i := range endpoints {
		out = append(out, newEndpointBody(&endpoints[i]))
	}
	return &ListEndpointsOutput{Body: out}, nil
}

type CreateEndpointInput struct {
	Body struct {
		Category string `json:"category" enum:"idea_engine,brief_creation,content_processing,derivative_generation,content_item_fix,general_content" doc:"Job category"`
		URL      string `json:"url" minLength:"1" format:"uri" doc:"Workflow webhook URL"`
		IsActive bool   `json:"is_active" default:"true" doc:"Whether the endpoint receives dispatches"`
	}
}

type EndpointOutput struct {
	Body EndpointBody
}

func (h *WebhooksHandler) Create(ctx context.Context, input *CreateEndpointInput) (*EndpointOutput, error) {
	category, err := job.ParseCategory(input.Body.Category)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	ep, err := h.store.CreateEndpoint(ctx, category, input.Body.URL, input.Body.IsActive)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &EndpointOutput{Body: newEndpointBody(ep)}, nil
}

type UpdateEndpointInput struct {
	ID   string `path:"id" doc:"Endpoint ID"`
	Body struct {
		URL      string `json:"url" minLength:"1" format:"uri" doc:"Workflow webhook URL"`
		IsActive bool   `json:"is_active" doc:"Whether the endpoint receives dispatches"`
	}
}

func (h *WebhooksHandler) Update(ctx context.Context, input *UpdateEndpointInput) (*EndpointOutput, error) {
	ep, err := h.store.UpdateEndpoint(ctx, input.ID, input.Body.URL, input.Body.IsActive)
	if err != nil {
		if errors.Is(err, database.ErrEndpointNotFound) {
			return nil, huma.Error404NotFound("endpoint not found")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &EndpointOutput{Body: newEndpointBody(ep)}, nil
}

type EndpointIDInput struct {
	ID string `path:"id" doc:"Endpoint ID"`
}

func (h *WebhooksHandler) Delete(ctx context.Context, input *EndpointIDInput) (*StatusOutput, error) {
	if err := h.store.DeleteEndpoint(ctx, input.ID); err != nil {
		if errors.Is(err, database.ErrEndpointNotFound) {
			return nil, huma.Error404NotFound("endpoint not found")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &StatusOutput{Body: StatusBody{Status: "deleted"}}, nil
}
