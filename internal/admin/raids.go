// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/aethercore/internal/platform/apperr"
	"github.com/taibuivan/aethercore/internal/platform/respond"
	"github.com/taibuivan/aethercore/internal/services/raid"
)

// raidView exposes read-only raid state plus an admin-gated force-expire
// operation over a [raid.Service].
type raidView struct {
	raids *raid.Service
}

// NewRaidView constructs a raidView.
func NewRaidView(raids *raid.Service) *raidView {
	return &raidView{raids: raids}
}

func (v *raidView) list(w http.ResponseWriter, r *http.Request) {
	active, err := v.raids.ActiveRaids(r.Context())
	if err != nil {
		respond.Error(w, r, apperr.Internal(err))
		return
	}
	respond.OK(w, map[string]any{
		"all":    v.raids.AllRaids(),
		"active": active,
	})
}

func (v *raidView) leaderboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 10
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := v.raids.Leaderboard(r.Context(), id, limit)
	if err != nil {
		respondRaidError(w, r, err)
		return
	}
	respond.OK(w, entries)
}

func (v *raidView) expire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := v.raids.Expire(r.Context(), id); err != nil {
		respondRaidError(w, r, err)
		return
	}
	respond.NoContent(w)
}

func respondRaidError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, raid.ErrNotFound) {
		respond.Error(w, r, apperr.NotFound("raid"))
		return
	}
	respond.Error(w, r, apperr.Internal(err))
}
