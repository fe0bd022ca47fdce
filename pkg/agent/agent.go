// Package agent implements the AI crew member: a dual-process pipeline that
// observes room state, deliberates with a slow model, executes with a fast
// model or deterministic rules, and issues the same game operations a human
// would. It is not a privileged side-channel.
package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/temcrew/temserver/pkg/game"
	"github.com/temcrew/temserver/pkg/llm"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/scenario"
)

// Chatter is the LLM surface the agent needs. *llm.Client satisfies it.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// crewName is the display name of every AI seat.
const crewName = "AI Crew"

// Agent is one AI-occupied seat. Hook methods are called on the room's
// dispatch goroutine and only schedule work; everything slow runs on agent
// goroutines that re-enter the room through the game engine.
type Agent struct {
	roomID string
	role   models.Role
	actor  models.Actor

	store    *room.Store
	engine   *game.Engine
	registry *scenario.Registry
	slow     Chatter
	fast     Chatter

	// ObserveLLMFailure, when set, counts fallback activations.
	ObserveLLMFailure func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Decisions are funneled through one worker so an AI PF submits them
	// in identification order.
	decideOnce sync.Once
	decisionCh chan string

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is replaceable in tests to skip pacing.
	sleep func(time.Duration)
}

// New creates the AI crew member for one seat of one room.
func New(roomID string, role models.Role, store *room.Store, engine *game.Engine, slow, fast Chatter) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		roomID:     roomID,
		role:       role,
		actor:      models.Actor{Session: game.AISession(roomID, role), Name: crewName, Role: role, IsAI: true},
		store:      store,
		engine:     engine,
		registry:   scenario.GetRegistry(),
		slow:       slow,
		fast:       fast,
		ctx:        ctx,
		cancel:     cancel,
		decisionCh: make(chan string, 16),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      time.Sleep,
	}
}

// Close abandons all in-flight agent work. Results racing with teardown are
// discarded anyway because the room has left the store.
func (a *Agent) Close() {
	a.cancel()
}

// Wait blocks until spawned tasks finish. Test helper.
func (a *Agent) Wait() {
	a.wg.Wait()
}

// spawn runs fn on an agent goroutine unless the agent is closed.
func (a *Agent) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-a.ctx.Done():
			return
		default:
		}
		fn()
	}()
}

// Pacing bands keep AI actions at human scale.
func (a *Agent) fastPause()      { a.pause(1*time.Second, 3*time.Second) }
func (a *Agent) slowPause()      { a.pause(3*time.Second, 6*time.Second) }
func (a *Agent) quizPause()      { a.pause(2*time.Second, 4*time.Second) }
func (a *Agent) checklistPause() { a.pause(1500*time.Millisecond, 3*time.Second) }

func (a *Agent) pause(min, max time.Duration) {
	a.mu.Lock()
	d := min + time.Duration(a.rng.Int63n(int64(max-min)))
	a.mu.Unlock()
	a.sleep(d)
}

func (a *Agent) llmFailed(task string, err error) {
	slog.Warn("LLM call failed, using fallback", "room", a.roomID, "role", a.role, "task", task, "error", err)
	if a.ObserveLLMFailure != nil {
		a.ObserveLLMFailure()
	}
}

// sendChat speaks as the AI crew member, with TTS enabled so the client can
// voice it.
func (a *Agent) sendChat(body string) {
	if body == "" {
		return
	}
	if err := a.engine.SendChat(a.ctx, a.roomID, a.actor, body, true); err != nil {
		slog.Debug("AI chat dropped", "room", a.roomID, "error", err)
	}
}

// OnPhase1Start runs the autonomous threat sweep when the AI holds the PF
// seat: it identifies every briefed threat in turn; each identification
// hooks OnDecisionRequest, which submits the decision.
func (a *Agent) OnPhase1Start() {
	if a.role != models.RolePF {
		return
	}
	a.spawn(func() {
		keywords := make([]string, 0, len(a.registry.Threats))
		for k := range a.registry.Threats {
			keywords = append(keywords, k)
		}
		sort.Strings(keywords)
		for _, kw := range keywords {
			a.slowPause()
			if err := a.engine.IdentifyThreat(a.ctx, a.roomID, a.actor, kw); err != nil {
				slog.Debug("AI threat identification skipped", "room", a.roomID, "keyword", kw, "error", err)
			}
		}
		a.fastPause()
		a.sendChat("Pre-flight threat review complete. All briefed threats identified and decisions submitted for your verification.")
	})
}

// OnDecisionRequest deliberates over a threat the PF just identified and
// submits one of its options. Requests are processed strictly in arrival
// order so the PM sees verify prompts in identification order.
func (a *Agent) OnDecisionRequest(keyword string) {
	if a.role != models.RolePF {
		return
	}
	select {
	case <-a.ctx.Done():
		return
	default:
	}
	a.decideOnce.Do(func() { go a.decisionWorker() })
	a.wg.Add(1)
	select {
	case a.decisionCh <- keyword:
	default:
		a.wg.Done()
	}
}

func (a *Agent) decisionWorker() {
	for {
		select {
		case <-a.ctx.Done():
			for {
				select {
				case <-a.decisionCh:
					a.wg.Done()
				default:
					return
				}
			}
		case kw := <-a.decisionCh:
			a.decideThreat(kw)
			a.wg.Done()
		}
	}
}

func (a *Agent) decideThreat(keyword string) {
	threat := a.registry.Threat(keyword)
	if threat == nil {
		return
	}
	obs, err := a.observe()
	if err != nil {
		return
	}
	a.slowPause()

	strategy, err := a.decisionStrategy(obs, threat)
	optionID := threat.Options[0].ID
	if err != nil {
		a.llmFailed("pf_decision", err)
	} else if threat.Option(strategy.Recommendation.Action) != nil {
		optionID = strategy.Recommendation.Action
	}
	// An id outside the option set degrades to the first option.

	if err := a.engine.SubmitDecision(a.ctx, a.roomID, a.actor, keyword, optionID); err != nil {
		slog.Debug("AI decision rejected", "room", a.roomID, "keyword", keyword, "error", err)
		return
	}
	if strategy != nil && strategy.Explanation != "" {
		a.sendChat(strategy.Explanation)
	}
}

// OnVerifyRequest reviews the pending PF decision as the PM.
func (a *Agent) OnVerifyRequest(pd models.PendingDecision) {
	if a.role != models.RolePM {
		return
	}
	a.spawn(func() {
		obs, err := a.observe()
		if err != nil {
			return
		}
		a.slowPause()

		approved := true // conservative default: approve
		strategy, err := a.verifyStrategy(obs, pd)
		if err != nil {
			a.llmFailed("pm_verify", err)
		} else {
			approved = strategy.Recommendation.Action != "reject"
		}

		if err := a.engine.VerifyDecision(a.ctx, a.roomID, a.actor, approved); err != nil {
			slog.Debug("AI verification rejected", "room", a.roomID, "error", err)
			return
		}
		if strategy != nil && strategy.Explanation != "" {
			a.sendChat(strategy.Explanation)
		}
	})
}

// OnQuizDelivered answers the emergency quiz as the PM, one question at a
// time, then reports completion in chat.
func (a *Agent) OnQuizDelivered() {
	if a.role != models.RolePM {
		return
	}
	a.spawn(func() {
		for i := range a.registry.Quiz {
			q := &a.registry.Quiz[i]
			a.quizPause()
			answer := a.answerQuiz(q)
			if err := a.engine.SubmitQuizAnswer(a.ctx, a.roomID, a.actor, q.ID, answer); err != nil {
				slog.Debug("AI quiz answer rejected", "room", a.roomID, "question", q.ID, "error", err)
			}
		}
		a.fastPause()
		a.sendChat("Emergency procedures quiz complete. Ready for the flight phase when you are.")
	})
}

// OnGaugeMonitored explains the gauge a human just tagged, as an educator.
func (a *Agent) OnGaugeMonitored(gaugeID string) {
	a.spawn(func() {
		info, err := a.engine.MonitorGauge(a.ctx, a.roomID, a.actor, gaugeID)
		if err != nil || info == nil {
			return
		}
		a.slowPause()
		text, err := a.gaugeAnalysis(gaugeID, info.CurrentValue)
		if err != nil {
			a.llmFailed("gauge_analysis", err)
			return
		}
		a.sendChat(text)
	})
}

// OnEventAlert matches the alert text to a QRH checklist, selects it, works
// the items, and explains the choice.
func (a *Agent) OnEventAlert(message string) {
	key := scenario.MatchQRH(message)
	if key == "" {
		return
	}
	a.spawn(func() {
		checklist := a.registry.Checklist(key)
		if checklist == nil {
			return
		}
		a.fastPause()
		a.sendChat("Alert acknowledged: " + message + ". Pulling the " + checklist.Title + " checklist.")

		if err := a.engine.SelectQRH(a.ctx, a.roomID, a.actor, key); err != nil {
			slog.Debug("AI checklist selection rejected", "room", a.roomID, "qrh", key, "error", err)
			return
		}
		for i := range checklist.Items {
			a.checklistPause()
			if err := a.engine.CheckItem(a.ctx, a.roomID, a.actor, i); err != nil {
				slog.Debug("AI checklist item rejected", "room", a.roomID, "qrh", key, "index", i, "error", err)
				return
			}
		}
		a.sendChat(checklist.Title + " checklist complete, all items verified.")

		if text, err := a.qrhExplanation(checklist); err != nil {
			a.llmFailed("qrh_explanation", err)
		} else {
			a.sendChat(text)
		}
	})
}

// OnChecklistShown explains a checklist a human selected.
func (a *Agent) OnChecklistShown(key string) {
	a.spawn(func() {
		checklist := a.registry.Checklist(key)
		if checklist == nil {
			return
		}
		a.slowPause()
		text, err := a.qrhExplanation(checklist)
		if err != nil {
			a.llmFailed("qrh_explanation", err)
			return
		}
		a.sendChat(text)
	})
}

// OnChatMessage gates whether the AI should reply to a human message and,
// if so, replies in chat.
func (a *Agent) OnChatMessage(msg models.ChatMessage) {
	if msg.IsAI {
		return
	}
	a.spawn(func() {
		obs, err := a.observe()
		if err != nil {
			return
		}
		a.fastPause()
		reply, err := a.chatReply(obs, msg)
		if err != nil {
			a.llmFailed("chat_reply", err)
			return // skip the reply, never block the session
		}
		a.sendChat(reply)
	})
}
