package entry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound indicates an unknown or expired session id.
var ErrSessionNotFound = errors.New("entry: session not found")

type registryItem struct {
	session  *Session
	lastUsed time.Time
}

// Registry keeps open sessions in process and drops the ones left idle.
type Registry struct {
	svc    *Service
	idle   time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryItem
}

// NewRegistry constructs a registry. A zero idle duration disables expiry.
func NewRegistry(svc *Service, idle time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		svc:      svc,
		idle:     idle,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*registryItem),
	}
}

// Open starts a session and registers it under a new id.
func (r *Registry) Open(ctx context.Context, kind Kind) (string, *Session, error) {
	sess, err := r.svc.Open(ctx, kind)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &registryItem{session: sess, lastUsed: r.now()}
	r.mu.Unlock()
	return id, sess, nil
}

// Get returns a session and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	item.lastUsed = r.now()
	return item.session, nil
}

// Close forgets a session. Held drafts and saved documents are not touched.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the idle duration. Sessions with
// a save in flight are kept.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, item := range r.sessions {
		if item.lastUsed.After(cutoff) || item.session.Saving() {
			continue
		}
		delete(r.sessions, id)
		dropped++
	}
	return dropped
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if r.idle <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("expired idle entry sessions", slog.Int("count", n))
			}
		}
	}
}
