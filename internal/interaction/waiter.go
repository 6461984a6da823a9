package interaction

import (
	"strings"
	"sync"
)

// Waiter parks one-shot waits for component and modal interactions. Ask
// and AskWithModal register a custom-id prefix here; the dispatcher
// offers every incoming component/modal interaction to the waiter before
// routing it anywhere else.
type Waiter struct {
	mu    sync.Mutex
	waits map[string]*wait
}

type wait struct {
	prefix  string
	allowed map[string]bool // empty means anyone
	ch      chan *Context
}

// NewWaiter creates an empty waiter.
func NewWaiter() *Waiter {
	return &Waiter{waits: make(map[string]*wait)}
}

// Register parks a wait for custom ids starting with prefix, restricted
// to the given user ids (nil allows anyone). The returned cancel func is
// idempotent and must be called if the wait is abandoned.
func (w *Waiter) Register(prefix string, allowedUsers []string) (<-chan *Context, func()) {
	allowed := make(map[string]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	entry := &wait{
		prefix:  prefix,
		allowed: allowed,
		ch:      make(chan *Context, 1),
	}

	w.mu.Lock()
	w.waits[prefix] = entry
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		delete(w.waits, prefix)
		w.mu.Unlock()
	}
	return entry.ch, cancel
}

// Offer hands an interaction to a parked wait. It returns true when the
// interaction was consumed (or rejected for the wrong user) and should
// not be routed further.
func (w *Waiter) Offer(ctx *Context) bool {
	customID := ctx.CustomID()
	if customID == "" {
		return false
	}

	w.mu.Lock()
	var match *wait
	for prefix, entry := range w.waits {
		if strings.HasPrefix(customID, prefix) {
			match = entry
			break
		}
	}
	if match == nil {
		w.mu.Unlock()
		return false
	}
	if len(match.allowed) > 0 && !match.allowed[ctx.AuthorID()] {
		w.mu.Unlock()
		// Someone else clicked the prompt; tell them off, keep waiting.
		if _, err := ctx.Respond(NewEphemeralResponse("This prompt is not for you.")); err != nil {
			return true
		}
		return true
	}
	delete(w.waits, match.prefix)
	w.mu.Unlock()

	select {
	case match.ch <- ctx:
	default:
	}
	return true
}

// Pending returns the number of parked waits.
func (w *Waiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waits)
}
