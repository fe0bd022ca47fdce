// Package room holds the per-session state unit and the process-wide store.
// All mutation of a Room happens on its dispatch goroutine; see Do.
package room

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/temcrew/temserver/pkg/gamelog"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/scenario"
)

// ErrClosed is returned by Do after the room has been torn down.
var ErrClosed = errors.New("room closed")

// MaxChatHistory caps the chat backlog; the oldest entry is evicted beyond it.
const MaxChatHistory = 100

// AgentNotifier receives the hooks an AI crew member subscribes to. Game
// Logic and the simulation loop fire these instead of emitting client
// messages when the recipient seat is AI-occupied. Implementations must not
// block; they schedule their own work.
type AgentNotifier interface {
	OnPhase1Start()
	OnDecisionRequest(keyword string)
	OnVerifyRequest(pd models.PendingDecision)
	OnQuizDelivered()
	OnGaugeMonitored(gaugeID string)
	OnEventAlert(message string)
	OnChecklistShown(key string)
	OnChatMessage(msg models.ChatMessage)
	Close()
}

// Room is the unit of session state. Fields are only touched from the
// room's dispatch goroutine, so none of them carry locks.
type Room struct {
	ID           string
	Mode         models.Mode
	Phase        models.Phase
	Score        int
	Users        map[string]models.User
	ChatHistory  []models.ChatMessage
	Log          *gamelog.Logger
	SessionStart time.Time

	// Phase 1
	ActiveThreats   map[string]bool
	HandledThreats  map[string]models.ThreatOutcome
	PendingDecision *models.PendingDecision
	DecisionQueue   []models.PendingDecision
	QuizResults     []models.QuizResult
	QuizStarted     bool

	// Phase 2
	Scenario        *scenario.Scenario
	SimStart        time.Time
	GaugeStates     map[string]float64
	MonitoredGauges map[string]bool
	EventDetections map[string]models.Detection
	ReadyForNext    map[string]bool
	AlertsFired     map[string]bool
	EventsEnded     map[string]bool

	// Phase 3
	UsedQRH            map[string]bool
	CurrentQRH         string
	CheckedItems       map[int]bool
	ActiveChecklistLen int

	// Agent is set when an AI occupies a seat; nil otherwise.
	Agent AgentNotifier

	// Rand drives scenario selection and gauge noise for this room.
	Rand *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan task
}

type task struct {
	fn   func() error
	done chan error
}

func newRoom(id string, mode models.Mode, log *gamelog.Logger, seed int64) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		ID:              id,
		Mode:            mode,
		Phase:           models.PhaseWaiting,
		Users:           map[string]models.User{},
		Log:             log,
		SessionStart:    time.Now(),
		ActiveThreats:   map[string]bool{},
		HandledThreats:  map[string]models.ThreatOutcome{},
		GaugeStates:     map[string]float64{},
		MonitoredGauges: map[string]bool{},
		EventDetections: map[string]models.Detection{},
		ReadyForNext:    map[string]bool{},
		AlertsFired:     map[string]bool{},
		EventsEnded:     map[string]bool{},
		UsedQRH:         map[string]bool{},
		CheckedItems:    map[int]bool{},
		Rand:            rand.New(rand.NewSource(seed)),
		ctx:             ctx,
		cancel:          cancel,
		tasks:           make(chan task),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case <-r.ctx.Done():
			// Fail any waiters that raced with teardown.
			for {
				select {
				case t := <-r.tasks:
					t.done <- ErrClosed
				default:
					return
				}
			}
		case t := <-r.tasks:
			t.done <- t.fn()
		}
	}
}

// Do runs fn on the room's dispatch goroutine and waits for it. Every state
// touch, from gateway handlers, the simulation loop, and AI goroutines, goes
// through here, which is what serializes the room.
func (r *Room) Do(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case r.tasks <- t:
	case <-r.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context is cancelled when the room is torn down. The simulation loop and
// agent goroutines watch it.
func (r *Room) Context() context.Context {
	return r.ctx
}

// Elapsed returns seconds since the session started.
func (r *Room) Elapsed() float64 {
	return time.Since(r.SessionStart).Seconds()
}

// UserByRole returns the seated user with the given role.
func (r *Room) UserByRole(role models.Role) (session string, u models.User, ok bool) {
	for s, user := range r.Users {
		if user.Role == role {
			return s, user, true
		}
	}
	return "", models.User{}, false
}

// RoleTaken reports whether a seat is occupied.
func (r *Room) RoleTaken(role models.Role) bool {
	_, _, ok := r.UserByRole(role)
	return ok
}

// Usernames returns the display names of all seated users.
func (r *Room) Usernames() []string {
	names := make([]string, 0, len(r.Users))
	for _, u := range r.Users {
		names = append(names, u.Name)
	}
	return names
}

// HumanCount returns the number of human users.
func (r *Room) HumanCount() int {
	n := 0
	for _, u := range r.Users {
		if !u.IsAI {
			n++
		}
	}
	return n
}

// AppendChat adds a message to the history, evicting the oldest beyond the
// cap, and returns the stored message.
func (r *Room) AppendChat(msg models.ChatMessage) models.ChatMessage {
	r.ChatHistory = append(r.ChatHistory, msg)
	if len(r.ChatHistory) > MaxChatHistory {
		r.ChatHistory = r.ChatHistory[len(r.ChatHistory)-MaxChatHistory:]
	}
	return msg
}

// RecentChat returns up to n most recent chat messages.
func (r *Room) RecentChat(n int) []models.ChatMessage {
	if len(r.ChatHistory) <= n {
		return r.ChatHistory
	}
	return r.ChatHistory[len(r.ChatHistory)-n:]
}

// AppendLog writes one session log record with the room's running score and
// phase filled in.
func (r *Room) AppendLog(actor models.Actor, action string, details map[string]any) {
	if r.Log == nil {
		return
	}
	_ = r.Log.Append(gamelog.Entry{
		ElapsedS: r.Elapsed(),
		Room:     r.ID,
		Username: actor.Name,
		Role:     string(actor.Role),
		Action:   action,
		Details:  details,
		Phase:    string(r.Phase),
		Score:    r.Score,
	})
}

func (r *Room) close() {
	r.cancel()
	if r.Agent != nil {
		r.Agent.Close()
	}
	if r.Log != nil {
		r.Log.Close()
	}
}
