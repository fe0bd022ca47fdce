// Package game implements the domain operations of a training session. It
// is the only mutator of room state; the gateway, the simulation loop, and
// the AI agent all act through it. Every operation validates its inputs,
// updates state, appends a session log record, and broadcasts results.
package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/scenario"
)

// Broadcaster delivers server→client messages. Implemented by the gateway.
type Broadcaster interface {
	// Broadcast sends an event to every connection in the room.
	Broadcast(roomID, event string, payload any)
	// SendToUser sends an event to one client session.
	SendToUser(roomID, session, event string, payload any)
}

// AgentFactory builds the AI crew member for a single-player room. Wired at
// startup; game never imports the agent package.
type AgentFactory func(roomID string, role models.Role) room.AgentNotifier

// SimStarter launches the Phase-2 simulation loop for a room. Called on the
// room's dispatch goroutine; it must set up gauge state synchronously and
// spawn the ticker without blocking.
type SimStarter func(r *room.Room)

// Engine executes game operations against rooms in the store.
type Engine struct {
	Store    *room.Store
	Registry *scenario.Registry
	B        Broadcaster

	// NewAgent is invoked on single-player join to fill the empty seat.
	NewAgent AgentFactory
	// StartSim is invoked when a room transitions to Phase 2.
	StartSim SimStarter
}

// NewEngine creates an engine over the given store and broadcaster.
func NewEngine(store *room.Store, reg *scenario.Registry, b Broadcaster) *Engine {
	return &Engine{Store: store, Registry: reg, B: b}
}

// run looks the room up and executes fn on its dispatch goroutine.
func (e *Engine) run(ctx context.Context, roomID string, fn func(r *room.Room) error) error {
	r, ok := e.Store.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	return r.Do(ctx, func() error { return fn(r) })
}

// AISession names the synthetic session handle of an AI seat. The agent
// builds its Actor with the same handle.
func AISession(roomID string, role models.Role) string {
	return fmt.Sprintf("AI_%s_%s", roomID, role)
}

// Join seats a user in the room, creating it on first join. Returns
// ErrRoomFull when no seat fits; the gateway reports that to the requester
// only. When the occupancy threshold is met the room enters Phase 1.
func (e *Engine) Join(ctx context.Context, roomID, session, username string, role models.Role, mode models.Mode) error {
	r, _, err := e.Store.GetOrCreate(roomID, mode)
	if err != nil {
		return err
	}
	return r.Do(ctx, func() error {
		if len(r.Users) >= 2 || r.RoleTaken(role) {
			return ErrRoomFull
		}
		r.Users[session] = models.User{Name: username, Role: role}
		actor := models.Actor{Session: session, Name: username, Role: role}
		r.AppendLog(actor, "join", map[string]any{"mode": string(r.Mode)})

		if r.Mode == models.ModeSinglePlayer && r.Agent == nil && e.NewAgent != nil {
			aiRole := role.Other()
			aiSession := AISession(roomID, aiRole)
			r.Users[aiSession] = models.User{Name: "AI Crew", Role: aiRole, IsAI: true}
			r.Agent = e.NewAgent(roomID, aiRole)
			slog.Info("AI crew member seated", "room", roomID, "role", aiRole)
		}

		e.B.Broadcast(roomID, events.EventUserCountUpdate, events.UserCountUpdatePayload{
			Count:     len(r.Users),
			Usernames: r.Usernames(),
		})

		if r.Phase == models.PhaseWaiting && len(r.Users) == 2 {
			e.startPhase1(r)
		}
		return nil
	})
}

func (e *Engine) startPhase1(r *room.Room) {
	r.Phase = models.Phase1
	cards := make([]events.InfoCard, 0, len(e.Registry.InfoCards))
	for _, c := range e.Registry.InfoCards {
		cards = append(cards, events.InfoCard{Label: c.Label, Content: c.Content})
	}
	e.B.Broadcast(r.ID, events.EventStartPhase1, events.StartPhase1Payload{
		Data: events.Phase1Data{InfoCards: cards},
	})
	r.AppendLog(models.Actor{Name: "system"}, "phase1_start", map[string]any{
		"users": r.Usernames(),
	})
	if r.Agent != nil {
		r.Agent.OnPhase1Start()
	}
}

// Leave removes a user from the room, broadcasts the departure, and reports
// whether the room is now empty of humans (the caller then tears it down).
func (e *Engine) Leave(ctx context.Context, roomID, session string) (empty bool, err error) {
	err = e.run(ctx, roomID, func(r *room.Room) error {
		u, ok := r.Users[session]
		if !ok {
			return nil
		}
		delete(r.Users, session)
		actor := models.Actor{Session: session, Name: u.Name, Role: u.Role}
		r.AppendLog(actor, "user_left", map[string]any{"remaining": len(r.Users)})
		e.B.Broadcast(roomID, events.EventUserLeft, events.UserLeftPayload{
			Username:       u.Name,
			Role:           string(u.Role),
			RemainingCount: len(r.Users),
		})
		e.B.Broadcast(roomID, events.EventUserCountUpdate, events.UserCountUpdatePayload{
			Count:     len(r.Users),
			Usernames: r.Usernames(),
		})
		if r.HumanCount() == 0 {
			r.AppendLog(models.Actor{Name: "system"}, "room_empty", nil)
			empty = true
		}
		return nil
	})
	return empty, err
}

// broadcastScore pushes the running score to the room.
func (e *Engine) broadcastScore(r *room.Room) {
	e.B.Broadcast(r.ID, events.EventUpdateScore, events.UpdateScorePayload{Score: r.Score})
}

// notifyPeerAgent fires hook when the seat opposite the actor is AI-held.
// AI-originated operations never re-trigger the agent.
func notifyPeerAgent(r *room.Room, actor models.Actor, hook func(room.AgentNotifier)) {
	if actor.IsAI || r.Agent == nil {
		return
	}
	if _, peer, ok := r.UserByRole(actor.Role.Other()); ok && peer.IsAI {
		hook(r.Agent)
	}
}
