// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package handler queues incoming key share requests per device so the host
// can prompt for one device at a time.
package handler

import (
	"fmt"
	"sync"

	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
	"maunium.net/go/mautrix/id"
)

// DeviceKey identifies the device a group of requests came from.
type DeviceKey struct {
	UserID   id.UserID
	DeviceID id.DeviceID
}

func (k DeviceKey) String() string {
	return fmt.Sprintf("%s:%s", k.UserID, k.DeviceID)
}

// Handler tracks pending requests grouped by device in arrival order.
// All methods are safe for concurrent use.
type Handler struct {
	mu      sync.Mutex
	order   []DeviceKey
	pending map[DeviceKey][]model.KeyShareRequest
	current *DeviceKey
	// resolved holds ids handed out by Resolve until the store stops
	// reporting them as pending.
	resolved map[string]struct{}
}

// New returns an empty handler.
func New() *Handler {
	return &Handler{
		pending:  make(map[DeviceKey][]model.KeyShareRequest),
		resolved: make(map[string]struct{}),
	}
}

// Sync replaces the queue contents with the given pending requests, which
// are expected in arrival order. Devices already queued keep their place.
// It reports true when the device currently being prompted for has no
// pending requests left, in which case the current device is cleared and
// the caller should close its prompt.
func (h *Handler) Sync(pending []model.KeyShareRequest) (currentCancelled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make(map[DeviceKey][]model.KeyShareRequest)
	var arrivals []DeviceKey
	stillPending := make(map[string]struct{}, len(pending))
	for _, r := range pending {
		if r.Status != "" && r.Status != model.RequestPending {
			continue
		}
		stillPending[r.RequestID] = struct{}{}
		if _, done := h.resolved[r.RequestID]; done {
			continue
		}
		k := DeviceKey{UserID: r.UserID, DeviceID: r.DeviceID}
		if _, seen := next[k]; !seen {
			arrivals = append(arrivals, k)
		}
		next[k] = append(next[k], r)
	}
	for rid := range h.resolved {
		if _, ok := stillPending[rid]; !ok {
			delete(h.resolved, rid)
		}
	}

	order := make([]DeviceKey, 0, len(next))
	placed := make(map[DeviceKey]bool, len(next))
	for _, k := range h.order {
		if _, ok := next[k]; ok {
			order = append(order, k)
			placed[k] = true
		}
	}
	for _, k := range arrivals {
		if !placed[k] {
			order = append(order, k)
		}
	}

	if h.current != nil {
		if _, ok := next[*h.current]; !ok {
			logging.Infof("handler: all key requests of %s were cancelled", h.current)
			h.current = nil
			currentCancelled = true
		}
	}

	h.order = order
	h.pending = next
	return currentCancelled
}

// Next selects the oldest queued device that is not already being prompted
// for. It returns false while a device is current or the queue is empty.
func (h *Handler) Next() (DeviceKey, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		return DeviceKey{}, false
	}
	if len(h.order) == 0 {
		return DeviceKey{}, false
	}
	k := h.order[0]
	h.current = &k
	return k, true
}

// Current returns the device being prompted for.
func (h *Handler) Current() (DeviceKey, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return DeviceKey{}, false
	}
	return *h.current, true
}

// Resolve removes the current device from the queue and returns its
// requests so the caller can record the decision on them.
func (h *Handler) Resolve(decision model.Decision) []model.KeyShareRequest {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		return nil
	}
	k := *h.current
	h.current = nil

	reqs := h.pending[k]
	delete(h.pending, k)
	for i, o := range h.order {
		if o == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	for _, r := range reqs {
		h.resolved[r.RequestID] = struct{}{}
	}
	logging.Infof("handler: %s for %d request(s) of %s", decision, len(reqs), k)
	return reqs
}

// Abandon clears the current device without resolving it. Its requests stay
// queued and are offered again by Next.
func (h *Handler) Abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return
	}
	k := *h.current
	h.current = nil
	// Move to the back so a failing device does not block the queue.
	for i, o := range h.order {
		if o == k {
			h.order = append(append(h.order[:i:i], h.order[i+1:]...), k)
			break
		}
	}
}

// Len is the number of devices with pending requests, including the
// current one.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Requests returns the queued requests of a device.
func (h *Handler) Requests(k DeviceKey) []model.KeyShareRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.KeyShareRequest(nil), h.pending[k]...)
}
