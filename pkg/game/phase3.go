package game

import (
	"context"
	"fmt"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
)

// checklistScore is the swing for picking the right or wrong emergency
// procedure, larger than any single Phase-1 award.
const checklistScore = 20

// SelectQRH activates an emergency checklist. Each checklist may be invoked
// once per session; correctness is judged against the running scenario.
func (e *Engine) SelectQRH(ctx context.Context, roomID string, actor models.Actor, key string) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		checklist := e.Registry.Checklist(key)
		if checklist == nil {
			return validationErr("invalid_checklist", fmt.Sprintf("Unknown checklist %q", key))
		}
		if r.UsedQRH[key] {
			return validationErr("duplicate_checklist", fmt.Sprintf("Checklist %s was already used", checklist.Title))
		}

		r.UsedQRH[key] = true
		r.CurrentQRH = key
		r.CheckedItems = map[int]bool{}
		r.ActiveChecklistLen = len(checklist.Items)
		r.Phase = models.Phase3

		correct := r.Scenario != nil && r.Scenario.AcceptsQRH(key)
		delta := -checklistScore
		msg := fmt.Sprintf("Wrong procedure: %s does not address the active fault. Applicable: %s",
			checklist.Title, e.acceptableTitles(scenarioQRH(r)))
		if correct {
			delta = checklistScore
			msg = fmt.Sprintf("Correct procedure: %s", checklist.Title)
		}
		r.Score += delta

		r.AppendLog(actor, "select_qrh", map[string]any{
			"qrh_key":      key,
			"correct":      correct,
			"score_change": delta,
		})

		e.B.Broadcast(roomID, events.EventShowChecklist, events.ShowChecklistPayload{
			Title: checklist.Title,
			Items: checklist.Items,
			Msg:   msg,
		})
		e.broadcastScore(r)

		notifyPeerAgent(r, actor, func(a room.AgentNotifier) { a.OnChecklistShown(key) })
		return nil
	})
}

func scenarioQRH(r *room.Room) []string {
	if r.Scenario == nil {
		return nil
	}
	return r.Scenario.AcceptableQRH
}

// CheckItem marks one checklist item complete. When the whole checklist is
// done a checklist_complete broadcast fires; the session keeps running.
func (e *Engine) CheckItem(ctx context.Context, roomID string, actor models.Actor, index int) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if r.CurrentQRH == "" {
			return validationErr("no_checklist", "No checklist is active")
		}
		if index < 0 || index >= r.ActiveChecklistLen {
			return validationErr("invalid_item", fmt.Sprintf("Checklist item %d is out of range", index))
		}
		r.CheckedItems[index] = true
		r.AppendLog(actor, "check_item", map[string]any{
			"qrh_key": r.CurrentQRH,
			"index":   index,
		})
		e.B.Broadcast(roomID, events.EventItemChecked, events.ItemCheckedPayload{
			Index: index,
			Role:  string(actor.Role),
		})

		if len(r.CheckedItems) == r.ActiveChecklistLen {
			checklist := e.Registry.Checklist(r.CurrentQRH)
			title := r.CurrentQRH
			if checklist != nil {
				title = checklist.Title
			}
			r.AppendLog(actor, "checklist_complete", map[string]any{"qrh_key": r.CurrentQRH})
			e.B.Broadcast(roomID, events.EventChecklistComplete, events.ChecklistCompletePayload{
				Msg:    fmt.Sprintf("%s checklist complete", title),
				QRHKey: r.CurrentQRH,
			})
		}
		return nil
	})
}
