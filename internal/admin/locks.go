// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"net/http"

	"github.com/taibuivan/aethercore/internal/core/lockmgr"
	"github.com/taibuivan/aethercore/internal/platform/respond"
)

// lockView exposes a read-only diagnostic view over a [lockmgr.LockManager].
type lockView struct {
	locks *lockmgr.LockManager
	// tracked is the set of entity ids the caller wants reported on, since
	// LockManager does not itself enumerate every id it has ever seen.
	tracked func() []string
}

// NewLockView constructs a lockView. tracked supplies the ids to report
// held/free status for on every request (e.g. the entity store's current
// working set).
func NewLockView(locks *lockmgr.LockManager, tracked func() []string) *lockView {
	return &lockView{locks: locks, tracked: tracked}
}

type lockStatus struct {
	ID     string `json:"id"`
	Locked bool   `json:"locked"`
}

func (v *lockView) list(w http.ResponseWriter, _ *http.Request) {
	var ids []string
	if v.tracked != nil {
		ids = v.tracked()
	}

	statuses := make([]lockStatus, 0, len(ids))
	held := 0
	for _, id := range ids {
		locked := v.locks.IsLocked(id)
		if locked {
			held++
		}
		statuses = append(statuses, lockStatus{ID: id, Locked: locked})
	}

	respond.OK(w, map[string]any{
		"locks":      statuses,
		"held_count": held,
	})
}
