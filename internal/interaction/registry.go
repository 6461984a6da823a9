package interaction

import (
	"container/list"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// DefaultRegistryCapacity bounds the number of live contexts.
	DefaultRegistryCapacity = 1024

	// DefaultRegistryTTL is how long an idle context stays cached.
	DefaultRegistryTTL = 500 * time.Second
)

// Registry hands out one live Context per interaction id, so a background
// task resolving the same interaction observes the caller's response
// state. Entries are evicted least-recently-used past capacity and after
// a TTL of inactivity; eviction expires the context.
type Registry struct {
	transport Transport
	capacity  int
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type registryEntry struct {
	ctx      *Context
	lastUsed time.Time
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Transport Transport
	Capacity  int
	TTL       time.Duration
}

// NewRegistry creates a context registry.
func NewRegistry(cfg *RegistryConfig) *Registry {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultRegistryCapacity
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	return &Registry{
		transport: cfg.Transport,
		capacity:  capacity,
		ttl:       ttl,
		now:       time.Now,
		entries:   make(map[string]*list.Element),
		order:     list.New(),
	}
}

// Get returns the live Context for the interaction, creating one if this
// is the first time the interaction is seen.
func (r *Registry) Get(s *discordgo.Session, i *discordgo.InteractionCreate) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked()

	if el, ok := r.entries[i.ID]; ok {
		entry := el.Value.(*registryEntry)
		entry.lastUsed = r.now()
		r.order.MoveToFront(el)
		return entry.ctx
	}

	ctx := NewContext(r.transport, s, i)
	el := r.order.PushFront(&registryEntry{ctx: ctx, lastUsed: r.now()})
	r.entries[i.ID] = el
	for r.order.Len() > r.capacity {
		r.evictLocked(r.order.Back())
	}
	return ctx
}

// Peek returns the Context for an interaction id without creating one.
func (r *Registry) Peek(interactionID string) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.entries[interactionID]
	if !ok {
		return nil, false
	}
	return el.Value.(*registryEntry).ctx, true
}

// Len returns the number of cached contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

func (r *Registry) evictExpiredLocked() {
	cutoff := r.now().Add(-r.ttl)
	for el := r.order.Back(); el != nil; {
		entry := el.Value.(*registryEntry)
		if entry.lastUsed.After(cutoff) {
			break
		}
		prev := el.Prev()
		r.evictLocked(el)
		el = prev
	}
}

func (r *Registry) evictLocked(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*registryEntry)
	delete(r.entries, entry.ctx.Key())
	r.order.Remove(el)
	entry.ctx.expire()
}
