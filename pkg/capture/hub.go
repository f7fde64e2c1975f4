package capture

import "sync"

// Hub hands out one Orchestrator per owner so concurrent surfaces (HTTP,
// chat bots) share the single-session rule of each owner.
type Hub struct {
	deps Deps

	mu      sync.Mutex
	byOwner map[string]*Orchestrator
}

// NewHub creates a Hub whose orchestrators share deps. deps.Recorder is
// ignored: hub orchestrators only process audio recorded by clients.
func NewHub(deps Deps) *Hub {
	deps.Recorder = nil
	return &Hub{deps: deps, byOwner: make(map[string]*Orchestrator)}
}

// For returns the orchestrator of ownerID, creating it on first use.
func (h *Hub) For(ownerID string) *Orchestrator {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.byOwner[ownerID]
	if !ok {
		o = New(ownerID, h.deps)
		h.byOwner[ownerID] = o
	}
	return o
}

// Wait blocks until the background work of every orchestrator is done.
func (h *Hub) Wait() {
	h.mu.Lock()
	all := make([]*Orchestrator, 0, len(h.byOwner))
	for _, o := range h.byOwner {
		all = append(all, o)
	}
	h.mu.Unlock()

	for _, o := range all {
		o.Wait()
	}
}
