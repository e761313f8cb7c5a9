// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"net/http"

	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/platform/respond"
	"github.com/taibuivan/aethercore/pkg/query"
)

// eventView exposes a read-only diagnostic view over an [eventbus.Bus]'s
// bounded history.
type eventView struct {
	bus *eventbus.Bus
}

// NewEventView constructs an eventView.
func NewEventView(bus *eventbus.Bus) *eventView {
	return &eventView{bus: bus}
}

// list returns history for ?topic=, which accepts a comma-separated list
// of topics (e.g. ?topic=banner_activated,banner_expired) to let an
// operator watch a small set of topics in one call instead of one request
// per topic. No topic at all returns every topic's history.
func (v *eventView) list(w http.ResponseWriter, r *http.Request) {
	topics := query.StringSlice(r.URL.Query().Get("topic"))
	if len(topics) == 0 {
		respond.OK(w, v.bus.GetHistory(""))
		return
	}

	var events []eventbus.Event
	for _, topic := range topics {
		events = append(events, v.bus.GetHistory(topic)...)
	}
	respond.OK(w, events)
}
