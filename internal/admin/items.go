// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taibuivan/aethercore/internal/platform/apperr"
	"github.com/taibuivan/aethercore/internal/platform/respond"
	"github.com/taibuivan/aethercore/internal/services/item"
)

// itemView exposes an admin-gated item-spawn operation over an
// [item.Service], for ops/support flows that need to grant an item without
// going through the normal gameplay purchase path.
type itemView struct {
	items *item.Service
}

// NewItemView constructs an itemView.
func NewItemView(items *item.Service) *itemView {
	return &itemView{items: items}
}

type spawnItemRequest struct {
	TemplateID string `json:"template_id"`
	Quantity   int64  `json:"quantity"`
}

type itemSummary struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	Quantity   int64  `json:"quantity"`
}

func (v *itemView) spawn(w http.ResponseWriter, r *http.Request) {
	var req spawnItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, apperr.ValidationError("invalid request body"))
		return
	}
	if req.TemplateID == "" {
		respond.Error(w, r, apperr.ValidationError("invalid request body",
			apperr.FieldError{Field: "template_id", Message: "template_id is required"}))
		return
	}

	e, err := v.items.SpawnItem(r.Context(), req.TemplateID, req.Quantity)
	if err != nil {
		if errors.Is(err, item.ErrInvalidQuantity) {
			respond.Error(w, r, apperr.Unprocessable("quantity must be positive"))
			return
		}
		respond.Error(w, r, apperr.Internal(err))
		return
	}

	templateID, _ := e.Fields["template_id"].(string)
	quantity, _ := e.Fields["quantity"].(int64)
	respond.Created(w, itemSummary{ID: e.ID, TemplateID: templateID, Quantity: quantity})
}
