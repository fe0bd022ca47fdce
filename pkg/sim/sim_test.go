package sim

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/scenario"
)

type sentMessage struct {
	Room    string
	Event   string
	Payload any
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeBroadcaster) Broadcast(roomID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Room: roomID, Event: event, Payload: payload})
}

func (f *fakeBroadcaster) byEvent(event string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func newTestRunner(t *testing.T, scenarioKey string) (*Runner, *room.Room, *scenario.Scenario, *fakeBroadcaster) {
	t.Helper()
	store := room.NewStore(t.TempDir())
	t.Cleanup(store.Close)
	r, _, err := store.GetOrCreate("sim-room", models.ModeDualPlayer)
	require.NoError(t, err)

	b := &fakeBroadcaster{}
	rn := NewRunner(scenario.GetRegistry(), b)
	sc := rn.Registry.Scenario(scenarioKey)
	require.NotNil(t, sc)

	require.NoError(t, r.Do(context.Background(), func() error {
		r.Scenario = sc
		r.Phase = models.Phase2
		return nil
	}))
	return rn, r, sc, b
}

// stepAt drives one simulation step at elapsed time t.
func stepAt(t *testing.T, rn *Runner, r *room.Room, sc *scenario.Scenario, elapsed float64) error {
	t.Helper()
	return r.Do(context.Background(), func() error {
		return rn.step(r, sc, elapsed)
	})
}

func TestBaselineRefreshWithinOnePercent(t *testing.T) {
	rn, r, sc, b := newTestRunner(t, "routine_flight")
	require.NoError(t, stepAt(t, rn, r, sc, 5))

	require.NoError(t, r.Do(context.Background(), func() error {
		for id, cfg := range rn.Registry.Gauges {
			if cfg.Tanks {
				assert.InDelta(t, cfg.BaselineLeft-0.25, r.GaugeStates[id+"_left"], 1e-9)
				assert.InDelta(t, cfg.BaselineRight-0.25, r.GaugeStates[id+"_right"], 1e-9)
				continue
			}
			v := r.GaugeStates[id]
			low, high := cfg.Baseline*0.99, cfg.Baseline*1.01
			if cfg.Baseline == 0 {
				low, high = -0.01, 0.01
			}
			assert.GreaterOrEqual(t, v, low, id)
			assert.LessOrEqual(t, v, high, id)
		}
		return nil
	}))

	updates := b.byEvent(events.EventFlightUpdate)
	require.Len(t, updates, 1)
	payload := updates[0].Payload.(events.FlightUpdatePayload)
	assert.Len(t, payload.Gauges, 8)
	assert.InDelta(t, 100*5.0/180, payload.Progress, 1e-9)
}

func TestFuelMonotonicNonIncreasing(t *testing.T) {
	rn, r, sc, _ := newTestRunner(t, "routine_flight")

	prevLeft, prevRight := 1e9, 1e9
	for _, elapsed := range []float64{1, 10, 21, 30, 40, 59, 70, 120} {
		require.NoError(t, stepAt(t, rn, r, sc, elapsed))
		require.NoError(t, r.Do(context.Background(), func() error {
			left := r.GaugeStates["fuel_qty_left"]
			right := r.GaugeStates["fuel_qty_right"]
			assert.LessOrEqual(t, left, prevLeft)
			assert.LessOrEqual(t, right, prevRight)
			prevLeft, prevRight = left, right
			return nil
		}))
	}
}

func TestAsymmetricPrecursorSplitsTanks(t *testing.T) {
	rn, r, sc, _ := newTestRunner(t, "routine_flight")
	require.NoError(t, stepAt(t, rn, r, sc, 30))

	require.NoError(t, r.Do(context.Background(), func() error {
		left := r.GaugeStates["fuel_qty_left"]
		right := r.GaugeStates["fuel_qty_right"]
		assert.InDelta(t, 23.5, left, 1e-9)
		assert.InDelta(t, 22.5, right, 1e-9)
		assert.Greater(t, left, right)
		return nil
	}))
}

func TestDetectionBoundary(t *testing.T) {
	// Monitored before alert_start: detection_score; the later alert adds
	// nothing.
	rn, r, sc, b := newTestRunner(t, "routine_flight")
	require.NoError(t, r.Do(context.Background(), func() error {
		r.MonitoredGauges["fuel_qty"] = true
		return nil
	}))

	require.NoError(t, stepAt(t, rn, r, sc, 34.9))
	require.NoError(t, r.Do(context.Background(), func() error {
		det, ok := r.EventDetections["fuel_imbalance"]
		require.True(t, ok)
		assert.Equal(t, models.DetectedAtPrecursor, det.Stage)
		assert.Equal(t, 20, r.Score)
		return nil
	}))
	require.Len(t, b.byEvent(events.EventPrecursorDetected), 1)

	require.NoError(t, stepAt(t, rn, r, sc, 35.1))
	require.NoError(t, r.Do(context.Background(), func() error {
		det := r.EventDetections["fuel_imbalance"]
		assert.Equal(t, models.DetectedAtPrecursor, det.Stage, "first detection never changes")
		assert.Equal(t, 20, r.Score, "alert adds no reaction score after precursor detection")
		return nil
	}))
	require.Len(t, b.byEvent(events.EventEventTrigger), 1)
	trigger := b.byEvent(events.EventEventTrigger)[0].Payload.(events.EventTriggerPayload)
	assert.Equal(t, "caution", trigger.Type)
	assert.Contains(t, trigger.Msg, "FUEL IMBALANCE")
}

func TestReactionScoreWhenPrecursorMissed(t *testing.T) {
	rn, r, sc, b := newTestRunner(t, "routine_flight")

	require.NoError(t, stepAt(t, rn, r, sc, 35.1))
	require.NoError(t, r.Do(context.Background(), func() error {
		det, ok := r.EventDetections["fuel_imbalance"]
		require.True(t, ok)
		assert.Equal(t, models.DetectedAtAlert, det.Stage)
		assert.Equal(t, 5, r.Score)
		return nil
	}))

	// The alert fires exactly once.
	require.NoError(t, stepAt(t, rn, r, sc, 36))
	require.NoError(t, stepAt(t, rn, r, sc, 37))
	assert.Len(t, b.byEvent(events.EventEventTrigger), 1)
	assert.Empty(t, b.byEvent(events.EventPrecursorDetected))
}

func TestLateMonitoringGivesNoDetectionCredit(t *testing.T) {
	rn, r, sc, _ := newTestRunner(t, "routine_flight")

	require.NoError(t, stepAt(t, rn, r, sc, 36))
	require.NoError(t, r.Do(context.Background(), func() error {
		r.MonitoredGauges["fuel_qty"] = true
		return nil
	}))
	require.NoError(t, stepAt(t, rn, r, sc, 37))

	require.NoError(t, r.Do(context.Background(), func() error {
		det := r.EventDetections["fuel_imbalance"]
		assert.Equal(t, models.DetectedAtAlert, det.Stage)
		assert.Equal(t, 5, r.Score)
		return nil
	}))
}

func TestAlertHoldsFailureValue(t *testing.T) {
	rn, r, sc, _ := newTestRunner(t, "critical_situation")
	require.NoError(t, stepAt(t, rn, r, sc, 40))

	require.NoError(t, r.Do(context.Background(), func() error {
		assert.Equal(t, 10.0, r.GaugeStates["oil_p"])
		return nil
	}))
}

func TestEventStabilizedOnce(t *testing.T) {
	rn, r, sc, b := newTestRunner(t, "routine_flight")

	require.NoError(t, stepAt(t, rn, r, sc, 61))
	require.NoError(t, stepAt(t, rn, r, sc, 62))

	var stabilized int
	for _, m := range b.byEvent(events.EventSysMsg) {
		if p, ok := m.Payload.(events.SysMsgPayload); ok && p.Msg == "Fuel Imbalance stabilized" {
			stabilized++
		}
	}
	assert.Equal(t, 1, stabilized)
}

func TestEventAlertNotifiesAgent(t *testing.T) {
	rn, r, sc, _ := newTestRunner(t, "critical_situation")
	agent := &alertRecorder{}
	require.NoError(t, r.Do(context.Background(), func() error {
		r.Agent = agent
		return nil
	}))

	require.NoError(t, stepAt(t, rn, r, sc, 31))
	agent.mu.Lock()
	defer agent.mu.Unlock()
	require.Len(t, agent.alerts, 1)
	assert.Contains(t, agent.alerts[0], "LOW OIL PRESSURE")
}

func TestMissionComplete(t *testing.T) {
	rn, r, sc, b := newTestRunner(t, "critical_situation")
	require.NoError(t, r.Do(context.Background(), func() error {
		r.Score = 45
		return nil
	}))

	err := stepAt(t, rn, r, sc, sc.Duration)
	require.ErrorIs(t, err, errMissionComplete)

	completes := b.byEvent(events.EventMissionComplete)
	require.Len(t, completes, 1)
	payload := completes[0].Payload.(events.MissionCompletePayload)
	assert.Equal(t, "Passed", payload.Result)
	assert.Equal(t, 45, payload.Score)

	require.NoError(t, r.Do(context.Background(), func() error {
		assert.Equal(t, models.PhaseEnded, r.Phase)
		return nil
	}))
}

func TestMissionDebriefBelowThreshold(t *testing.T) {
	rn, r, sc, b := newTestRunner(t, "critical_situation")

	err := stepAt(t, rn, r, sc, sc.Duration)
	require.ErrorIs(t, err, errMissionComplete)

	completes := b.byEvent(events.EventMissionComplete)
	require.Len(t, completes, 1)
	assert.Equal(t, "Debrief Required", completes[0].Payload.(events.MissionCompletePayload).Result)
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []string
}

func (a *alertRecorder) OnPhase1Start()                          {}
func (a *alertRecorder) OnDecisionRequest(string)                {}
func (a *alertRecorder) OnVerifyRequest(models.PendingDecision)  {}
func (a *alertRecorder) OnQuizDelivered()                        {}
func (a *alertRecorder) OnGaugeMonitored(string)                 {}
func (a *alertRecorder) OnChecklistShown(string)                 {}
func (a *alertRecorder) OnChatMessage(models.ChatMessage)        {}
func (a *alertRecorder) Close()                                  {}

func (a *alertRecorder) OnEventAlert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, msg)
}

func TestRunnerStartInitializesRoom(t *testing.T) {
	store := room.NewStore(t.TempDir())
	t.Cleanup(store.Close)
	r, _, err := store.GetOrCreate("sim-room", models.ModeDualPlayer)
	require.NoError(t, err)

	b := &fakeBroadcaster{}
	rn := NewRunner(scenario.GetRegistry(), b)

	require.NoError(t, r.Do(context.Background(), func() error {
		rn.Start(r)
		assert.Equal(t, models.Phase2, r.Phase)
		require.NotNil(t, r.Scenario)
		assert.Len(t, r.GaugeStates, 8)
		return nil
	}))
	store.Remove("sim-room")

	starts := b.byEvent(events.EventStartPhase2)
	require.Len(t, starts, 1)
	assert.Positive(t, starts[0].Payload.(events.StartPhase2Payload).Duration)
	require.NotEmpty(t, b.byEvent(events.EventSysMsg))
}

func TestStepFailsAfterRoomClose(t *testing.T) {
	store := room.NewStore(t.TempDir())
	r, _, err := store.GetOrCreate("sim-room", models.ModeDualPlayer)
	require.NoError(t, err)
	store.Remove("sim-room")

	rn := NewRunner(scenario.GetRegistry(), &fakeBroadcaster{})
	sc := rn.Registry.Scenario("routine_flight")
	err = r.Do(context.Background(), func() error { return rn.step(r, sc, 1) })
	assert.True(t, errors.Is(err, room.ErrClosed))
}

func TestTeardownStopsLoopQuietly(t *testing.T) {
	store := room.NewStore(t.TempDir())
	r, _, err := store.GetOrCreate("sim-room", models.ModeDualPlayer)
	require.NoError(t, err)

	// The loop dispatches with the room's own context, so after teardown
	// Do may return either ErrClosed or context.Canceled depending on
	// which select branch fires. Both must stop the loop without an error.
	ctx := r.Context()
	store.Remove("sim-room")
	err = r.Do(ctx, func() error { return nil })
	require.Error(t, err)
	assert.True(t, isShutdownErr(err), "teardown error treated as a tick failure: %v", err)

	assert.True(t, isShutdownErr(room.ErrClosed))
	assert.True(t, isShutdownErr(context.Canceled))
	assert.True(t, isShutdownErr(errMissionComplete))
	assert.False(t, isShutdownErr(errors.New("boom")))
	assert.False(t, isShutdownErr(nil))
}
