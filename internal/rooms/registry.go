package rooms

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/protocol"
)

// RoomType enumerates the supported room kinds (spec.md §6).
type RoomType string

const (
	TypeChat     RoomType = "chat"
	TypeDrawing  RoomType = "drawing"
	TypeLiveWar  RoomType = "live_war"
	TypeGobang   RoomType = "gobang"
)

// Key identifies a logical room: at most one per process, per spec.md §3.
type Key struct {
	Type RoomType
	ID   int64
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.Type, k.ID) }

// Manager is implemented by each room type's state machine. The registry
// funnels connection lifecycle and inbound frames into it; the manager is
// the sole owner of its state (spec.md §9 "shared mutable registry").
type Manager interface {
	// Join admits a newly accepted connection, sending any initial state
	// directly to it and/or announcing it to the room.
	Join(conn *Conn)
	// Leave removes a connection that disconnected.
	Leave(conn *Conn)
	// HandleEnvelope dispatches one decoded frame from conn.
	HandleEnvelope(conn *Conn, env *protocol.Envelope)
	// IsEmpty reports whether this room is safe to garbage-collect right
	// now. Chat/Drawing/Gobang answer based on current occupancy;
	// LiveWar answers false until its internal 60s empty-room grace
	// window (spec.md §5) has elapsed.
	IsEmpty() bool
	// Teardown cancels all of the manager's background tasks. Called
	// once, when the registry reaps an empty room.
	Teardown()
}

// Factory builds a fresh Manager for a given room key.
type Factory func(ctx context.Context, key Key) Manager

// Registry owns one Manager per room identity, created lazily, mirroring
// the teacher's Matchmaker.GetOrCreateRoom.
type Registry struct {
	mu       sync.Mutex
	managers map[Key]Manager
	factories map[RoomType]Factory
	ctx      context.Context
}

// NewRegistry creates an empty registry bound to the given lifetime context.
func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		managers:  make(map[Key]Manager),
		factories: make(map[RoomType]Factory),
		ctx:       ctx,
	}
}

// Register installs the factory used to build managers of the given type.
func (r *Registry) Register(t RoomType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// GetOrCreate returns the manager for key, creating it via the
// registered factory if it doesn't exist yet.
func (r *Registry) GetOrCreate(key Key) (Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[key]; ok {
		return m, nil
	}

	factory, ok := r.factories[key.Type]
	if !ok {
		return nil, fmt.Errorf("rooms: unknown room type %q", key.Type)
	}

	m := factory(r.ctx, key)
	r.managers[key] = m
	log.Info().Str("room", key.String()).Msg("room created")
	return m, nil
}

// Remove tears down and forgets a room. Safe to call when the manager
// has already initiated its own teardown.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	m, ok := r.managers[key]
	if ok {
		delete(r.managers, key)
	}
	r.mu.Unlock()

	if ok {
		m.Teardown()
		log.Info().Str("room", key.String()).Msg("room torn down")
	}
}

// CleanupEmpty reaps every room whose manager reports IsEmpty(), mirroring
// the teacher's Matchmaker.CleanupEmptyRooms. Called from the periodic
// cleanup loop in cmd/roomserver (runCleanupLoop).
func (r *Registry) CleanupEmpty() int {
	r.mu.Lock()
	dead := make(map[Key]Manager)
	for key, m := range r.managers {
		if m.IsEmpty() {
			dead[key] = m
		}
	}
	for key := range dead {
		delete(r.managers, key)
	}
	r.mu.Unlock()

	for key, m := range dead {
		m.Teardown()
		log.Info().Str("room", key.String()).Msg("empty room reaped")
	}
	return len(dead)
}

// Stats reports the live room count per type, mirroring the teacher's
// Matchmaker.GetStats (internal/matchmaker/matchmaker.go).
func (r *Registry) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for key := range r.managers {
		out[string(key.Type)]++
	}
	return out
}

// ResolveIdentity is a small helper used by the transport layer; kept
// here so callers don't need to import authz directly for the common
// "identity or anonymous" pattern.
func ResolveIdentity(resolver *authz.Resolver, token string) authz.Identity {
	if resolver == nil {
		return authz.Anonymous()
	}
	return resolver.Resolve(token)
}
