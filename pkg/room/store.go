package room

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/temcrew/temserver/pkg/gamelog"
	"github.com/temcrew/temserver/pkg/models"
)

// Store is the process-wide room-id to room mapping. It is the only
// structure touched across rooms; the mutex guards the map alone, never
// room internals.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	logDir string
}

// NewStore creates a store writing session logs under logDir.
func NewStore(logDir string) *Store {
	return &Store{
		rooms:  map[string]*Room{},
		logDir: logDir,
	}
}

// Get returns the room with the given id.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// GetOrCreate returns the room with the given id, creating it (with its
// session log and dispatch goroutine) on the first join.
func (s *Store) GetOrCreate(id string, mode models.Mode) (*Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r, false, nil
	}
	log, err := gamelog.New(s.logDir, id)
	if err != nil {
		return nil, false, fmt.Errorf("creating session log for room %s: %w", id, err)
	}
	r := newRoom(id, mode, log, time.Now().UnixNano())
	s.rooms[id] = r
	slog.Info("Room created", "room", id, "mode", mode, "log_file", log.Path())
	return r, true, nil
}

// Remove tears the room down: cancels its context (stopping the simulation
// loop and failing orphaned Do calls), closes the agent and the log, and
// drops it from the map.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	r, ok := s.rooms[id]
	if ok {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	r.close()
	slog.Info("Room removed", "room", id)
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Close tears down every room, for server shutdown.
func (s *Store) Close() {
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = map[string]*Room{}
	s.mu.Unlock()
	for _, r := range rooms {
		r.close()
	}
}
