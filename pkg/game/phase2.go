package game

import (
	"context"
	"fmt"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/scenario"
)

// RequestPhase2 records the actor's readiness. The flight launches only
// from Phase 1, once every seat the mode calls for is ready: the one human
// in single-player, both humans in dual-player.
func (e *Engine) RequestPhase2(ctx context.Context, roomID string, actor models.Actor) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if r.Phase == models.Phase2 || r.Phase == models.PhaseEnded {
			return nil
		}
		r.ReadyForNext[actor.Session] = true
		r.AppendLog(actor, "request_phase2", map[string]any{"ready": len(r.ReadyForNext)})

		if r.Phase != models.Phase1 {
			return nil
		}
		required := 2
		if r.Mode == models.ModeSinglePlayer {
			required = 1
		}
		ready := 0
		for session := range r.ReadyForNext {
			if u, ok := r.Users[session]; ok && !u.IsAI {
				ready++
			}
		}
		if ready < required {
			return nil
		}
		if e.StartSim != nil {
			e.StartSim(r)
		}
		return nil
	})
}

// GaugeInfo is the monitor_gauge return for AI-teaching use.
type GaugeInfo struct {
	GaugeID      string
	Name         string
	CurrentValue float64
	Config       scenario.GaugeConfig
}

// MonitorGauge tags a gauge for monitoring. Idempotent: tagging twice has
// the same effect as once.
func (e *Engine) MonitorGauge(ctx context.Context, roomID string, actor models.Actor, gaugeID string) (*GaugeInfo, error) {
	var info *GaugeInfo
	err := e.run(ctx, roomID, func(r *room.Room) error {
		cfg, ok := e.Registry.Gauges[gaugeID]
		if !ok {
			return validationErr("invalid_gauge", fmt.Sprintf("Unknown gauge %q", gaugeID))
		}
		already := r.MonitoredGauges[gaugeID]
		r.MonitoredGauges[gaugeID] = true
		if !already {
			r.AppendLog(actor, "monitor_gauge", map[string]any{"gauge": gaugeID})
			e.B.Broadcast(roomID, events.EventGaugeMonitored, events.GaugeMonitoredPayload{
				GaugeID: gaugeID,
				Msg:     fmt.Sprintf("%s is now being monitored by %s", cfg.Name, actor.Name),
			})
		}

		value := r.GaugeStates[gaugeID]
		if cfg.Tanks {
			value = r.GaugeStates[gaugeID+"_left"] + r.GaugeStates[gaugeID+"_right"]
		}
		info = &GaugeInfo{GaugeID: gaugeID, Name: cfg.Name, CurrentValue: value, Config: cfg}

		if !already {
			notifyPeerAgent(r, actor, func(a room.AgentNotifier) { a.OnGaugeMonitored(gaugeID) })
		}
		return nil
	})
	return info, err
}
