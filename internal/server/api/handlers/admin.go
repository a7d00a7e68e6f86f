package handlers

import (
	"context"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/sweep"
	"github.com/danielgtaylor/huma/v2"
)

// AdminHandler exposes the manual sweep trigger. The same sweeper runs on
// the interval loop; this endpoint exists for operators who don't want to
// wait for the next tick.
type AdminHandler struct {
	sweeper *sweep.Sweeper
}

func NewAdminHandler(sweeper *sweep.Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

type ExpiredJobBody struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Category string `json:"category"`
	Title    string `json:"title"`
}

type SweepBody struct {
	Expired []ExpiredJobBody `json:"expired" doc:"Jobs failed by this sweep"`
}

type SweepOutput struct {
	Body SweepBody
}

func (h *AdminHandler) Sweep(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
	expired, err := h.sweeper.SweepAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	out := make([]ExpiredJobBody, 0, len(expired))
	for _, j := range expired {
		out = append(out, ExpiredJobBody{
			ID:       j.ID,
			OwnerID:  j.OwnerID,
			Category: string(j.Category),
			Title:    j.Title,
		})
	}
	return &SweepOutput{Body: SweepBody{Expired: out}}, nil
}
