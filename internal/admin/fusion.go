// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taibuivan/aethercore/internal/platform/apperr"
	"github.com/taibuivan/aethercore/internal/platform/respond"
	"github.com/taibuivan/aethercore/internal/services/fusion"
)

// fusionView exposes an admin-gated card-fusion operation over a
// [fusion.Service], for support flows that need to force a fusion outcome
// (e.g. replaying a disputed pull) without the normal gameplay front-end.
type fusionView struct {
	fusion *fusion.Service
}

// NewFusionView constructs a fusionView.
func NewFusionView(f *fusion.Service) *fusionView {
	return &fusionView{fusion: f}
}

type fuseCardsRequest struct {
	OwnerID          string `json:"owner_id"`
	CardAID          string `json:"card_a_id"`
	CardBID          string `json:"card_b_id"`
	ResultTemplateID string `json:"result_template_id"`
}

type fusedCardSummary struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	TemplateID string `json:"template_id"`
}

func (v *fusionView) fuse(w http.ResponseWriter, r *http.Request) {
	var req fuseCardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, apperr.ValidationError("invalid request body"))
		return
	}
	if req.OwnerID == "" || req.CardAID == "" || req.CardBID == "" || req.ResultTemplateID == "" {
		respond.Error(w, r, apperr.ValidationError("invalid request body",
			apperr.FieldError{Field: "owner_id/card_a_id/card_b_id/result_template_id", Message: "all fields are required"}))
		return
	}

	fused, err := v.fusion.FuseCards(r.Context(), req.OwnerID, req.CardAID, req.CardBID, req.ResultTemplateID)
	if err != nil {
		switch {
		case errors.Is(err, fusion.ErrCardNotFound):
			respond.Error(w, r, apperr.NotFound("card"))
		case errors.Is(err, fusion.ErrCardNotOwned), errors.Is(err, fusion.ErrCardNotActive):
			respond.Error(w, r, apperr.Unprocessable(err.Error()))
		default:
			respond.Error(w, r, apperr.Internal(err))
		}
		return
	}

	owner, _ := fused.Fields["owner_id"].(string)
	templateID, _ := fused.Fields["template_id"].(string)
	respond.Created(w, fusedCardSummary{ID: fused.ID, OwnerID: owner, TemplateID: templateID})
}
