package agent

import (
	"fmt"

	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
)

// recentChatWindow bounds how much chat history an observation carries.
const recentChatWindow = 6

// observe projects the room into a phase-specific Observation. The
// projection runs on the room's dispatch goroutine and copies everything it
// needs; the returned Observation holds no live references.
func (a *Agent) observe() (*models.Observation, error) {
	r, ok := a.store.Get(a.roomID)
	if !ok {
		return nil, fmt.Errorf("room %s no longer exists", a.roomID)
	}
	var obs *models.Observation
	err := r.Do(a.ctx, func() error {
		obs = project(r, a.role)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func project(r *room.Room, role models.Role) *models.Observation {
	ctx := map[string]any{
		"score": r.Score,
		"chat":  chatLines(r.RecentChat(recentChatWindow)),
	}
	switch r.Phase {
	case models.Phase1, models.PhaseWaiting:
		handled := map[string]string{}
		for kw, out := range r.HandledThreats {
			handled[kw] = string(out.Result)
		}
		ctx["handled_threats"] = handled
		if r.PendingDecision != nil {
			ctx["pending_decision"] = map[string]any{
				"keyword": r.PendingDecision.Keyword,
				"option":  r.PendingDecision.OptionText,
				"pf_name": r.PendingDecision.PFName,
			}
		}
		ctx["queued_decisions"] = len(r.DecisionQueue)
	case models.Phase2:
		gauges := make(map[string]float64, len(r.GaugeStates))
		for k, v := range r.GaugeStates {
			gauges[k] = v
		}
		monitored := make([]string, 0, len(r.MonitoredGauges))
		for g := range r.MonitoredGauges {
			monitored = append(monitored, g)
		}
		detections := map[string]string{}
		for id, d := range r.EventDetections {
			detections[id] = string(d.Stage)
		}
		ctx["gauges"] = gauges
		ctx["monitored"] = monitored
		ctx["detections"] = detections
		if r.Scenario != nil {
			ctx["scenario"] = r.Scenario.Name
		}
	case models.Phase3:
		used := make([]string, 0, len(r.UsedQRH))
		for k := range r.UsedQRH {
			used = append(used, k)
		}
		ctx["used_qrh"] = used
		ctx["current_qrh"] = r.CurrentQRH
		ctx["checked_items"] = len(r.CheckedItems)
		ctx["checklist_len"] = r.ActiveChecklistLen
	}
	return &models.Observation{Phase: r.Phase, Role: role, Context: ctx}
}

func chatLines(history []models.ChatMessage) []string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", m.SenderName, m.SenderRole, m.Body))
	}
	return lines
}
