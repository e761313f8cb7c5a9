// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/aethercore/internal/core/scheduler"
	"github.com/taibuivan/aethercore/internal/platform/apperr"
	"github.com/taibuivan/aethercore/internal/platform/respond"
)

// schedulerView exposes a read-only listing plus an admin-gated cancel
// operation over a [scheduler.Scheduler].
type schedulerView struct {
	sched *scheduler.Scheduler
}

// NewSchedulerView constructs a schedulerView.
func NewSchedulerView(sched *scheduler.Scheduler) *schedulerView {
	return &schedulerView{sched: sched}
}

func (v *schedulerView) list(w http.ResponseWriter, _ *http.Request) {
	respond.OK(w, v.sched.ListActive())
}

func (v *schedulerView) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !v.sched.Cancel(id) {
		respond.Error(w, r, apperr.NotFound("No such scheduled task"))
		return
	}
	respond.NoContent(w)
}
