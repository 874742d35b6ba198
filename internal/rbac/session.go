package rbac

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mdmops/console/internal/shared"
)

// RoleSource resolves role assignments and role permission maps.
type RoleSource interface {
	RoleFor(ctx context.Context, actor string) (string, error)
	PermissionsFor(ctx context.Context, role string) (PermissionMap, error)
}

// State is a point-in-time view of a Session.
type State struct {
	Loading     bool          `json:"loading"`
	Actor       string        `json:"actor"`
	Role        string        `json:"role"`
	Permissions PermissionMap `json:"permissions"`
}

// Session is the permission read model of one actor. It starts loading,
// may be filled early from a cached snapshot and is then overwritten by the
// authoritative load.
type Session struct {
	mu      sync.RWMutex
	actor   string
	loading bool
	settled bool
	role    string
	perms   PermissionMap
	gen     uint64

	loadedAt  time.Time
	reloading bool

	usableOnce sync.Once
	usable     chan struct{}
}

func newSession(actor string) *Session {
	return &Session{
		actor:   actor,
		loading: true,
		perms:   PermissionMap{},
		usable:  make(chan struct{}),
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Loading: s.loading, Actor: s.actor, Role: s.role, Permissions: s.perms.Clone()}
}

// Role returns the resolved role name.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Can implements Checker.
func (s *Session) Can(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Can(s.perms, key)
}

// CanAll implements Checker.
func (s *Session) CanAll(keys ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CanAll(s.perms, keys)
}

// CanAny implements Checker.
func (s *Session) CanAny(keys ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CanAny(s.perms, keys)
}

// FilterNav prunes nodes to what this session allows.
func (s *Session) FilterNav(nodes []Node) []Node {
	return FilterNav(nodes, s)
}

// Wait blocks until the session holds usable data, either from a fresh
// snapshot or from the authoritative load.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.usable:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) markUsable() {
	s.usableOnce.Do(func() { close(s.usable) })
}

// applySnapshot fills the session from cache unless the authoritative load
// already committed.
func (s *Session) applySnapshot(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return false
	}
	s.role = snap.Role
	s.perms = snap.Perms.Clone()
	s.loading = false
	s.markUsable()
	return true
}

func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.reloading = true
	return s.gen
}

// beginIfStale starts a reload when the last authoritative load is older
// than ttl and none is running.
func (s *Session) beginIfStale(now time.Time, ttl time.Duration) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reloading || !s.settled || now.Sub(s.loadedAt) < ttl {
		return 0, false
	}
	s.gen++
	s.reloading = true
	return s.gen, true
}

// commit stores an authoritative result if gen is still the latest load.
func (s *Session) commit(gen uint64, role string, perms PermissionMap, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.role = role
	s.perms = perms
	s.loading = false
	s.settled = true
	s.loadedAt = at
	s.reloading = false
	s.markUsable()
	return true
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.role = ""
	s.perms = PermissionMap{}
	s.loading = false
	s.settled = true
	s.reloading = false
	s.markUsable()
}

// SessionConfig tunes a SessionStore.
type SessionConfig struct {
	// TTL bounds how long a cached snapshot or a loaded session may be
	// trusted before it is reloaded.
	TTL time.Duration
	// FallbackRole is used when an actor has no role record or loading fails.
	FallbackRole string
	// LoadTimeout bounds each authoritative load.
	LoadTimeout time.Duration
}

// SessionStore resolves and caches permission sessions per actor.
type SessionStore struct {
	source    RoleSource
	snapshots SnapshotCache
	cfg       SessionConfig
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(source RoleSource, snapshots SnapshotCache, cfg SessionConfig, logger *slog.Logger) *SessionStore {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.FallbackRole == "" {
		cfg.FallbackRole = shared.RoleViewer
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		source:    source,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "permission_session")),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the session of actor, creating it when needed. A new session
// is seeded from a fresh cached snapshot and an authoritative load is started
// in the background. An existing session older than the TTL is served as is
// while it reloads.
func (s *SessionStore) Open(ctx context.Context, actor string) *Session {
	if actor == "" {
		sess := newSession("")
		sess.reset()
		return sess
	}

	s.mu.Lock()
	sess, ok := s.sessions[actor]
	if !ok {
		sess = newSession(actor)
		s.sessions[actor] = sess
	}
	s.mu.Unlock()
	if ok {
		if gen, stale := sess.beginIfStale(s.now(), s.cfg.TTL); stale {
			go s.load(context.WithoutCancel(ctx), sess, gen)
		}
		return sess
	}

	if s.snapshots != nil {
		if snap, hit := s.snapshots.Load(ctx, actor); hit && snap.Fresh(s.now()) {
			sess.applySnapshot(snap)
		}
	}

	gen := sess.begin()
	go s.load(context.WithoutCancel(ctx), sess, gen)
	return sess
}

// Resolve opens the session of actor and waits until it is usable.
func (s *SessionStore) Resolve(ctx context.Context, actor string) (*Session, error) {
	sess := s.Open(ctx, actor)
	if err := sess.Wait(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Refresh runs an authoritative load for actor and waits for it.
func (s *SessionStore) Refresh(ctx context.Context, actor string) *Session {
	if actor == "" {
		return s.Open(ctx, actor)
	}
	s.mu.Lock()
	sess, ok := s.sessions[actor]
	if !ok {
		sess = newSession(actor)
		s.sessions[actor] = sess
	}
	s.mu.Unlock()

	s.load(ctx, sess, sess.begin())
	return sess
}

// Close resets the session of actor and forgets it.
func (s *SessionStore) Close(actor string) {
	s.mu.Lock()
	sess, ok := s.sessions[actor]
	delete(s.sessions, actor)
	s.mu.Unlock()
	if ok {
		sess.reset()
	}
}

// Watch applies auth-state transitions until ctx is done, then calls
// unsubscribe.
func (s *SessionStore) Watch(ctx context.Context, events <-chan shared.AuthEvent, unsubscribe func()) {
	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, evt)
		}
	}
}

func (s *SessionStore) handle(ctx context.Context, evt shared.AuthEvent) {
	switch evt.Kind {
	case shared.EventSignedIn, shared.EventRoleChanged:
		s.Refresh(ctx, evt.Actor)
	case shared.EventSignedOut:
		s.Close(evt.Actor)
	case shared.EventPermissionsChanged:
		for _, actor := range s.actorsWithRole(evt.Role) {
			s.Refresh(ctx, actor)
		}
	}
}

func (s *SessionStore) actorsWithRole(role string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actors := make([]string, 0)
	for actor, sess := range s.sessions {
		if sess.Role() == role {
			actors = append(actors, actor)
		}
	}
	return actors
}

func (s *SessionStore) load(ctx context.Context, sess *Session, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	defer cancel()

	role, perms, err := s.fetch(ctx, sess.actor)
	if err != nil {
		s.logger.Error("load permissions", slog.String("actor", sess.actor), slog.Any("error", err))
		sess.commit(gen, s.cfg.FallbackRole, PermissionMap{}, s.now())
		return
	}
	if !sess.commit(gen, role, perms, s.now()) {
		return
	}
	if s.snapshots != nil {
		s.snapshots.Save(ctx, sess.actor, Snapshot{
			Role:      role,
			Perms:     perms,
			ExpiresAt: s.now().Add(s.cfg.TTL).UnixMilli(),
		})
	}
}

func (s *SessionStore) fetch(ctx context.Context, actor string) (string, PermissionMap, error) {
	role, err := s.source.RoleFor(ctx, actor)
	if err != nil {
		return "", nil, err
	}
	if role == "" {
		role = s.cfg.FallbackRole
	}
	perms, err := s.source.PermissionsFor(ctx, role)
	if err != nil {
		return "", nil, err
	}
	if perms == nil {
		perms = PermissionMap{}
	}
	return role, perms, nil
}
