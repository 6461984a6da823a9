// Package autoroles grants roles for a bounded duration when named
// events fire and removes them again on expiry.
package autoroles

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/KuramaSyu/inu-sub000/internal/repositories/postgres"
)

// Event is a named occasion that grants a role. The enum is closed;
// new events are added here, not at runtime.
type Event int

const (
	EventVoiceActivity Event = iota + 1
	EventMessageActivity
	EventManual
)

func (e Event) String() string {
	switch e {
	case EventVoiceActivity:
		return "voice-activity"
	case EventMessageActivity:
		return "message-activity"
	case EventManual:
		return "manual"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

const (
	// maxSweepInterval bounds how long the sweeper sleeps even with no
	// upcoming expiry.
	maxSweepInterval = 60 * time.Second

	// removeRetryDelay is the pause before the single removal retry.
	removeRetryDelay = 30 * time.Second
)

// RoleManager grants and revokes guild roles.
//
//go:generate mockgen -destination=mock/mock_rolemanager.go -package=mockautoroles github.com/KuramaSyu/inu-sub000/internal/autoroles RoleManager
type RoleManager interface {
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
}

// Store is the persistence the service needs.
type Store interface {
	Upsert(ctx context.Context, a postgres.AutoroleAssignment) (int64, error)
	Unexpired(ctx context.Context) ([]postgres.AutoroleAssignment, error)
	Delete(ctx context.Context, id int64) error
}

// assignmentKey identifies one grant across refreshes.
type assignmentKey struct {
	guildID string
	userID  string
	roleID  string
	eventID int
}

func keyOf(a postgres.AutoroleAssignment) assignmentKey {
	return assignmentKey{a.GuildID, a.UserID, a.RoleID, a.EventID}
}

// Service owns the in-memory expiry heap and the sweeper.
type Service struct {
	store Store
	roles RoleManager

	mu   sync.Mutex
	heap expiryHeap

	// latest holds the live expiry per grant. A refresh pushes a new
	// heap entry and moves this forward; entries popped with an older
	// expiry are superseded and skipped.
	latest map[assignmentKey]time.Time

	wake chan struct{}

	// retryDelay is swapped out by tests.
	retryDelay time.Duration
}

// Config configures a Service.
type Config struct {
	Store Store
	Roles RoleManager
}

// NewService creates the autoroles service.
func NewService(cfg *Config) *Service {
	return &Service{
		store:      cfg.Store,
		roles:      cfg.Roles,
		latest:     make(map[assignmentKey]time.Time),
		wake:       make(chan struct{}, 1),
		retryDelay: removeRetryDelay,
	}
}

// Load pulls all unexpired assignments into the heap. Called once
// before Run.
func (s *Service) Load(ctx context.Context) error {
	assignments, err := s.store.Unexpired(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	s.mu.Lock()
	s.heap = s.heap[:0]
	s.latest = make(map[assignmentKey]time.Time, len(assignments))
	for _, a := range assignments {
		heap.Push(&s.heap, a)
		s.latest[keyOf(a)] = a.ExpiresAt
	}
	s.mu.Unlock()
	log.Printf("[Autoroles] loaded %d pending assignments", len(assignments))
	return nil
}

// OnEvent grants the role and schedules its removal. Repeating an event
// for the same (guild, user, role) refreshes the expiry.
func (s *Service) OnEvent(ctx context.Context, guildID, userID, roleID string, event Event, duration time.Duration) error {
	assignment := postgres.AutoroleAssignment{
		GuildID:   guildID,
		UserID:    userID,
		RoleID:    roleID,
		EventID:   int(event),
		ExpiresAt: time.Now().Add(duration),
	}
	id, err := s.store.Upsert(ctx, assignment)
	if err != nil {
		return fmt.Errorf("persist assignment: %w", err)
	}
	assignment.ID = id

	if err := s.roles.AddRole(guildID, userID, roleID); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}

	s.mu.Lock()
	heap.Push(&s.heap, assignment)
	s.latest[keyOf(assignment)] = assignment.ExpiresAt
	s.mu.Unlock()
	s.poke()
	log.Printf("[Autoroles] %s granted role %s to %s in guild %s until %s",
		event, roleID, userID, guildID, assignment.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Run sweeps expired assignments until the context ends. The sweeper
// wakes at the earliest upcoming expiry, and at least once a minute.
func (s *Service) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(s.nextWake())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
		s.sweep(ctx)
	}
}

func (s *Service) nextWake() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heap) == 0 {
		return maxSweepInterval
	}
	until := time.Until(s.heap[0].ExpiresAt)
	if until < 0 {
		return 0
	}
	if until > maxSweepInterval {
		return maxSweepInterval
	}
	return until
}

// sweep removes every assignment whose expiry has passed.
func (s *Service) sweep(ctx context.Context) {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].ExpiresAt.After(now) {
			s.mu.Unlock()
			return
		}
		assignment := heap.Pop(&s.heap).(postgres.AutoroleAssignment)
		key := keyOf(assignment)
		want, live := s.latest[key]
		if !live || !want.Equal(assignment.ExpiresAt) {
			// A refresh superseded this entry; its replacement is
			// still in the heap.
			s.mu.Unlock()
			continue
		}
		delete(s.latest, key)
		s.mu.Unlock()

		s.expire(ctx, assignment)
	}
}

// expire revokes the role and drops the record. A failed removal is
// retried once after a delay; the record is dropped either way so a
// broken role cannot wedge the sweeper.
func (s *Service) expire(ctx context.Context, a postgres.AutoroleAssignment) {
	err := s.roles.RemoveRole(a.GuildID, a.UserID, a.RoleID)
	if err == nil {
		s.deleteRecord(ctx, a)
		return
	}
	log.Printf("[Autoroles] role removal failed for %s in guild %s, retrying in %s: %v",
		a.UserID, a.GuildID, s.retryDelay, err)

	time.AfterFunc(s.retryDelay, func() {
		retryCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.roles.RemoveRole(a.GuildID, a.UserID, a.RoleID); err != nil {
			log.Printf("[Autoroles] role removal failed twice for %s in guild %s, dropping record: %v",
				a.UserID, a.GuildID, err)
		}
		s.deleteRecord(retryCtx, a)
	})
}

func (s *Service) deleteRecord(ctx context.Context, a postgres.AutoroleAssignment) {
	if err := s.store.Delete(ctx, a.ID); err != nil {
		log.Printf("[Autoroles] delete assignment %d failed: %v", a.ID, err)
	}
}

func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of scheduled assignments.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

// expiryHeap is a min-heap on ExpiresAt.
type expiryHeap []postgres.AutoroleAssignment

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].ExpiresAt.Before(h[j].ExpiresAt) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(postgres.AutoroleAssignment)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
