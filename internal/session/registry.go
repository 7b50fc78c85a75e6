package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"lane-defense/internal/game"
	"lane-defense/internal/metrics"

	"github.com/google/uuid"
)

// Registry assigns connections to rooms. Solo joins always get a fresh room;
// versus joins fill the one open room, which is retired from assignment once full.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	open  *Room // versus room still waiting for players

	opts        Options
	idleTimeout time.Duration
}

// NewRegistry creates an empty registry. Rooms with no connected members for
// idleTimeout are closed by Sweep.
func NewRegistry(opts Options, idleTimeout time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		opts:        opts.withDefaults(),
		idleTimeout: idleTimeout,
	}
}

// Join seats conn in a room for mode and returns the room and new player id.
func (g *Registry) Join(mode game.Mode, conn Conn) (*Room, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if mode == game.ModeVersus && g.open != nil {
		room := g.open
		id, _, err := room.Join(conn)
		if err == nil {
			if room.Full() {
				g.open = nil
			}
			return room, id, nil
		}
		// Closed or already started; fall through to a new room
		g.open = nil
	}

	room := g.newRoomLocked(mode)
	id, _, err := room.Join(conn)
	if err != nil {
		return nil, "", err
	}
	if mode == game.ModeVersus && !room.Full() {
		g.open = room
	}
	return room, id, nil
}

// Rejoin reattaches playerID to its reserved side in sessionID.
func (g *Registry) Rejoin(sessionID, playerID string, conn Conn) (*Room, error) {
	room, ok := g.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := room.Rejoin(playerID, conn); err != nil {
		return nil, err
	}
	return room, nil
}

// Get looks a room up by id.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	return room, ok
}

// List summarizes every open room, ordered by id.
func (g *Registry) List() []Summary {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.Unlock()

	out := make([]Summary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of open rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Sweep closes rooms that have had no connected member for longer than the
// idle timeout and returns how many it closed.
func (g *Registry) Sweep() int {
	now := g.opts.Now()

	g.mu.Lock()
	var idle []*Room
	for id, room := range g.rooms {
		since, ok := room.IdleSince()
		if !ok || now.Sub(since) < g.idleTimeout {
			continue
		}
		idle = append(idle, room)
		delete(g.rooms, id)
		if g.open == room {
			g.open = nil
		}
	}
	g.mu.Unlock()

	for _, room := range idle {
		room.Close()
	}
	if len(idle) > 0 {
		log.Printf("🧹 Closed %d idle sessions", len(idle))
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done. It also mirrors the
// journal counters into metrics.
func (g *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
			if j := g.opts.Journal; j != nil {
				stats := j.GetStats()
				total, _ := stats["total"].(uint64)
				dropped, _ := stats["dropped"].(uint64)
				metrics.UpdateEventLogStats(total, dropped)
			}
		}
	}
}

// Close closes one room and removes it from assignment.
func (g *Registry) Close(id string) bool {
	g.mu.Lock()
	room, ok := g.rooms[id]
	if ok {
		delete(g.rooms, id)
		if g.open == room {
			g.open = nil
		}
	}
	g.mu.Unlock()

	if ok {
		room.Close()
	}
	return ok
}

// CloseAll closes every room. Used on shutdown.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	rooms := g.rooms
	g.rooms = make(map[string]*Room)
	g.open = nil
	g.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

func (g *Registry) newRoomLocked(mode game.Mode) *Room {
	room := NewRoom(uuid.NewString(), mode, g.opts)
	g.rooms[room.ID] = room
	log.Printf("🏠 Created %s room %s (%d open)", mode, room.ID, len(g.rooms))
	return room
}
