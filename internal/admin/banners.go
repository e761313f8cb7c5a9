// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/aethercore/internal/platform/apperr"
	"github.com/taibuivan/aethercore/internal/platform/respond"
	"github.com/taibuivan/aethercore/internal/services/banner"
)

// bannerView exposes read-only banner state plus an admin-gated
// force-expire operation over a [banner.Service].
type bannerView struct {
	banners *banner.Service
}

// NewBannerView constructs a bannerView.
func NewBannerView(banners *banner.Service) *bannerView {
	return &bannerView{banners: banners}
}

type bannerSummary struct {
	ID     string        `json:"id"`
	Status banner.Status `json:"status"`
	Stats  banner.Stats  `json:"stats"`
}

func (v *bannerView) list(w http.ResponseWriter, r *http.Request) {
	ids := v.banners.All()
	summaries := make([]bannerSummary, 0, len(ids))
	for _, id := range ids {
		status, stats, err := v.banners.Get(r.Context(), id)
		if err != nil {
			continue
		}
		summaries = append(summaries, bannerSummary{ID: id, Status: status, Stats: stats})
	}
	respond.OK(w, summaries)
}

func (v *bannerView) expire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := v.banners.Expire(r.Context(), id); err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			respond.Error(w, r, apperr.NotFound("banner"))
			return
		}
		respond.Error(w, r, apperr.Internal(err))
		return
	}
	respond.NoContent(w)
}
