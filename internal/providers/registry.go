package providers

import (
	"context"
	"sort"
	"time"

	"github.com/docmindlabs/docmind/internal/telemetry"
)

// Registry holds the configured provider handles. Built once at startup;
// availability is probed here and never re-checked mid-run.
type Registry struct {
	handles []*Handle
}

// NewRegistry probes every client with a short timeout and caches the
// outcome. A failed probe marks the handle unavailable instead of failing
// startup.
func NewRegistry(ctx context.Context, clients []Client, priority map[string]int, probeTimeout time.Duration) *Registry {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}

	handles := make([]*Handle, 0, len(clients))
	for _, cl := range clients {
		caps := make(map[Task]bool, 2)
		for _, t := range cl.Capabilities() {
			caps[t] = true
		}
		h := &Handle{
			ID:           cl.ID(),
			Priority:     priority[cl.ID()],
			Capabilities: caps,
			Client:       cl,
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := cl.Probe(probeCtx)
		cancel()

		log := telemetry.L().With().Str("provider", h.ID).Logger()
		if err != nil {
			log.Warn().Err(err).Msg("provider_probe_failed")
		} else {
			h.Available = true
			log.Info().Int("priority", h.Priority).Msg("provider_ready")
		}
		handles = append(handles, h)
	}

	sort.SliceStable(handles, func(i, j int) bool {
		return handles[i].Priority > handles[j].Priority
	})
	return &Registry{handles: handles}
}

// Handles returns every configured handle in descending priority order.
func (r *Registry) Handles() []*Handle { return r.handles }

// Capable returns the available handles that support the task, still in
// descending priority order.
func (r *Registry) Capable(task Task) []*Handle {
	var out []*Handle
	for _, h := range r.handles {
		if h.Available && h.Supports(task) {
			out = append(out, h)
		}
	}
	return out
}

// Lookup finds a handle by id.
func (r *Registry) Lookup(id string) *Handle {
	for _, h := range r.handles {
		if h.ID == id {
			return h
		}
	}
	return nil
}
