// Package sim runs the per-room Phase-2 simulation loop: a 100 ms ticker
// that refreshes gauge values, injects scripted precursor and alert windows,
// credits detection and reaction scores, and ends the mission.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/scenario"
)

// Broadcaster delivers room-scoped messages. Implemented by the gateway.
type Broadcaster interface {
	Broadcast(roomID, event string, payload any)
}

// errMissionComplete stops the ticker from inside a dispatched step.
var errMissionComplete = errors.New("mission complete")

// passThreshold is the score above which the mission result is Passed.
// Tunable; not calibrated against any study.
const passThreshold = 40

// normalFuelBurn is the cruise burn per tank in gallons per second.
const normalFuelBurn = 0.05

// Runner launches and drives simulation loops. One Runner serves all rooms.
type Runner struct {
	Registry *scenario.Registry
	B        Broadcaster

	// Tick defaults to 100 ms.
	Tick time.Duration
	// ObserveTick, when set, receives the wall time each step took.
	ObserveTick func(time.Duration)
}

// NewRunner creates a runner with the default tick period.
func NewRunner(reg *scenario.Registry, b Broadcaster) *Runner {
	return &Runner{Registry: reg, B: b, Tick: 100 * time.Millisecond}
}

// Start satisfies game.SimStarter. It runs on the room's dispatch
// goroutine: it picks the scenario, seeds the gauges, announces Phase 2,
// and spawns the ticker goroutine.
func (rn *Runner) Start(r *room.Room) {
	sc := rn.Registry.PickScenario(r.Rand)
	r.Scenario = sc
	r.Phase = models.Phase2
	r.SimStart = time.Now()

	for id, cfg := range rn.Registry.Gauges {
		if cfg.Tanks {
			r.GaugeStates[id+"_left"] = cfg.BaselineLeft
			r.GaugeStates[id+"_right"] = cfg.BaselineRight
			continue
		}
		r.GaugeStates[id] = cfg.Baseline
	}

	r.AppendLog(models.Actor{Name: "system"}, "scenario_selected", map[string]any{
		"scenario": sc.Key,
		"duration": sc.Duration,
	})
	rn.B.Broadcast(r.ID, events.EventSysMsg, events.SysMsgPayload{
		Msg: fmt.Sprintf("Scenario injected: %s", sc.Name),
	})
	rn.B.Broadcast(r.ID, events.EventStartPhase2, events.StartPhase2Payload{Duration: sc.Duration})
	slog.Info("Simulation started", "room", r.ID, "scenario", sc.Key, "duration", sc.Duration)

	go rn.loop(r, sc)
}

func (rn *Runner) loop(r *room.Room, sc *scenario.Scenario) {
	tick := rn.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := time.Now()
			err := r.Do(ctx, func() error {
				return rn.step(r, sc, time.Since(r.SimStart).Seconds())
			})
			if rn.ObserveTick != nil {
				rn.ObserveTick(time.Since(started))
			}
			if isShutdownErr(err) {
				return
			}
			if err != nil {
				slog.Error("Simulation tick failed", "room", r.ID, "error", err)
				return
			}
		}
	}
}

// isShutdownErr reports whether a tick error means the loop should stop
// quietly: the mission ended, or the room was torn down. Teardown surfaces
// as ErrClosed or as context.Canceled depending on which side of Do's
// select observes the cancel first.
func isShutdownErr(err error) bool {
	return errors.Is(err, errMissionComplete) ||
		errors.Is(err, room.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

// step advances the simulation to elapsed seconds t. Runs on the room's
// dispatch goroutine.
func (rn *Runner) step(r *room.Room, sc *scenario.Scenario, t float64) error {
	rn.refreshBaselines(r, t)

	for i := range sc.Events {
		ev := &sc.Events[i]
		switch {
		case t < ev.PrecursorStart:
		case t < ev.AlertStart:
			rn.applyPrecursor(r, ev, t)
			rn.checkPrecursorDetection(r, ev)
		case t < ev.EventEnd:
			rn.fireAlert(r, ev, sc, t)
			rn.holdFailureValue(r, ev, t)
		default:
			if !r.EventsEnded[ev.ID] {
				r.EventsEnded[ev.ID] = true
				rn.B.Broadcast(r.ID, events.EventSysMsg, events.SysMsgPayload{
					Msg: fmt.Sprintf("%s stabilized", ev.Name),
				})
			}
		}
	}

	progress := 100 * t / sc.Duration
	if progress > 100 {
		progress = 100
	}
	gauges := make(map[string]float64, len(r.GaugeStates))
	for k, v := range r.GaugeStates {
		gauges[k] = v
	}
	rn.B.Broadcast(r.ID, events.EventFlightUpdate, events.FlightUpdatePayload{
		Gauges:   gauges,
		Progress: progress,
	})

	if t >= sc.Duration {
		rn.complete(r, sc)
		return errMissionComplete
	}
	return nil
}

// refreshBaselines resets every gauge to its noisy baseline; gauges inside
// an active event window get overwritten by the event pass afterwards.
func (rn *Runner) refreshBaselines(r *room.Room, t float64) {
	for id, cfg := range rn.Registry.Gauges {
		if cfg.Tanks {
			// Fuel never recovers: after an asymmetric event drained a tank
			// past the normal burn line, the lower value stands.
			r.GaugeStates[id+"_left"] = fuelLevel(r.GaugeStates, id+"_left", cfg.BaselineLeft-normalFuelBurn*t)
			r.GaugeStates[id+"_right"] = fuelLevel(r.GaugeStates, id+"_right", cfg.BaselineRight-normalFuelBurn*t)
			continue
		}
		noise := 1 + (r.Rand.Float64()*2-1)*0.01
		r.GaugeStates[id] = cfg.Baseline * noise
	}
}

func fuelLevel(states map[string]float64, key string, candidate float64) float64 {
	if prev, ok := states[key]; ok && candidate > prev {
		candidate = prev
	}
	if candidate < 0 {
		candidate = 0
	}
	return candidate
}

func (rn *Runner) applyPrecursor(r *room.Room, ev *scenario.Event, t float64) {
	cfg := rn.Registry.Gauges[ev.Precursor.Gauge]
	elapsed := t - ev.PrecursorStart
	if ev.Precursor.Pattern == scenario.PatternAsymmetric {
		baseLeft := cfg.BaselineLeft - normalFuelBurn*ev.PrecursorStart
		baseRight := cfg.BaselineRight - normalFuelBurn*ev.PrecursorStart
		left, right := scenario.AsymmetricFuel(baseLeft, baseRight, elapsed)
		r.GaugeStates[ev.Precursor.Gauge+"_left"] = left
		r.GaugeStates[ev.Precursor.Gauge+"_right"] = right
		return
	}
	r.GaugeStates[ev.Precursor.Gauge] = scenario.PrecursorValue(ev.Precursor.Pattern, cfg.Baseline, elapsed, r.Rand)
}

// checkPrecursorDetection credits the detection score once when the event's
// gauge is already under monitoring during the precursor window.
func (rn *Runner) checkPrecursorDetection(r *room.Room, ev *scenario.Event) {
	if _, seen := r.EventDetections[ev.ID]; seen {
		return
	}
	if !r.MonitoredGauges[ev.Precursor.Gauge] {
		return
	}
	r.EventDetections[ev.ID] = models.Detection{Stage: models.DetectedAtPrecursor, At: time.Now()}
	r.Score += ev.DetectionScore
	r.AppendLog(models.Actor{Name: "system"}, "precursor_detected", map[string]any{
		"event":        ev.ID,
		"gauge":        ev.Precursor.Gauge,
		"score_change": ev.DetectionScore,
	})
	rn.B.Broadcast(r.ID, events.EventPrecursorDetected, events.PrecursorDetectedPayload{
		EventName: ev.Name,
		Gauge:     ev.Precursor.Gauge,
		Score:     ev.DetectionScore,
		Msg:       fmt.Sprintf("Precursor caught: %s on %s", ev.Name, ev.Precursor.Gauge),
	})
	rn.B.Broadcast(r.ID, events.EventUpdateScore, events.UpdateScorePayload{Score: r.Score})
}

// fireAlert broadcasts the event_trigger exactly once and credits the
// reaction score when the precursor went unnoticed.
func (rn *Runner) fireAlert(r *room.Room, ev *scenario.Event, sc *scenario.Scenario, t float64) {
	if r.AlertsFired[ev.ID] {
		return
	}
	r.AlertsFired[ev.ID] = true

	if _, seen := r.EventDetections[ev.ID]; !seen {
		r.EventDetections[ev.ID] = models.Detection{Stage: models.DetectedAtAlert, At: time.Now()}
		r.Score += ev.ReactionScore
		r.AppendLog(models.Actor{Name: "system"}, "alert_reaction", map[string]any{
			"event":        ev.ID,
			"score_change": ev.ReactionScore,
		})
		rn.B.Broadcast(r.ID, events.EventUpdateScore, events.UpdateScorePayload{Score: r.Score})
	}

	rn.B.Broadcast(r.ID, events.EventEventTrigger, events.EventTriggerPayload{
		Type:     string(ev.Alert.Severity),
		Msg:      ev.Alert.Message,
		Progress: 100 * t / sc.Duration,
	})
	r.AppendLog(models.Actor{Name: "system"}, "event_alert", map[string]any{
		"event":    ev.ID,
		"severity": string(ev.Alert.Severity),
	})
	if r.Agent != nil {
		r.Agent.OnEventAlert(ev.Alert.Message)
	}
}

// holdFailureValue pins the event's gauge at its failed reading for the
// alert window. Asymmetric fuel keeps draining instead.
func (rn *Runner) holdFailureValue(r *room.Room, ev *scenario.Event, t float64) {
	if ev.Precursor.Pattern == scenario.PatternAsymmetric {
		rn.applyPrecursor(r, ev, t)
		return
	}
	if v, ok := scenario.AlertValue(ev.Precursor.Gauge); ok {
		r.GaugeStates[ev.Precursor.Gauge] = v
	}
}

func (rn *Runner) complete(r *room.Room, sc *scenario.Scenario) {
	result := "Debrief Required"
	if r.Score > passThreshold {
		result = "Passed"
	}
	detected := 0
	for range r.EventDetections {
		detected++
	}
	summary := fmt.Sprintf("Scenario %s complete: %d/%d events detected, final score %d",
		sc.Name, detected, len(sc.Events), r.Score)

	r.Phase = models.PhaseEnded
	r.AppendLog(models.Actor{Name: "system"}, "mission_complete", map[string]any{
		"result": result,
		"score":  r.Score,
	})
	rn.B.Broadcast(r.ID, events.EventMissionComplete, events.MissionCompletePayload{
		Score:   r.Score,
		Result:  result,
		Summary: summary,
	})
	slog.Info("Mission complete", "room", r.ID, "scenario", sc.Key, "score", r.Score, "result", result)
}
