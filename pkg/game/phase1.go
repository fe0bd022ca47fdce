package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
)

// IdentifyThreat marks a threat keyword as under decision and prompts the
// PF with its options.
func (e *Engine) IdentifyThreat(ctx context.Context, roomID string, actor models.Actor, keyword string) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if actor.Role != models.RolePF {
			return validationErr("wrong_role", "Only the PF identifies threats")
		}
		threat := e.Registry.Threat(keyword)
		if threat == nil {
			r.AppendLog(actor, "identify_invalid_threat", map[string]any{"keyword": keyword})
			return validationErr("identify_invalid_threat", fmt.Sprintf("%q is not a briefed threat", keyword))
		}
		if _, done := r.HandledThreats[keyword]; done {
			return validationErr("threat_resolved", fmt.Sprintf("Threat %q is already resolved", keyword))
		}
		r.ActiveThreats[keyword] = true
		r.AppendLog(actor, "identify_threat", map[string]any{"keyword": keyword})

		opts := make([]events.DecisionOption, 0, len(threat.Options))
		for _, o := range threat.Options {
			opts = append(opts, events.DecisionOption{ID: o.ID, Text: o.Text})
		}
		payload := events.ShowPFDecisionModalPayload{
			Keyword:     keyword,
			Description: threat.Description,
			Options:     opts,
		}
		if actor.IsAI {
			if r.Agent != nil {
				r.Agent.OnDecisionRequest(keyword)
			}
		} else {
			e.B.SendToUser(roomID, actor.Session, events.EventShowPFDecisionModal, payload)
		}
		return nil
	})
}

// SubmitDecision enqueues a PF decision for PM verification. The head of the
// queue is promoted immediately when nothing is pending.
func (e *Engine) SubmitDecision(ctx context.Context, roomID string, actor models.Actor, keyword, optionID string) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if actor.Role != models.RolePF {
			return validationErr("wrong_role", "Only the PF submits decisions")
		}
		threat := e.Registry.Threat(keyword)
		if threat == nil {
			return validationErr("identify_invalid_threat", fmt.Sprintf("%q is not a briefed threat", keyword))
		}
		if _, done := r.HandledThreats[keyword]; done {
			return validationErr("threat_resolved", fmt.Sprintf("Threat %q is already resolved", keyword))
		}
		opt := threat.Option(optionID)
		if opt == nil {
			return validationErr("invalid_option", fmt.Sprintf("Option %q does not exist for %q", optionID, keyword))
		}

		pd := models.PendingDecision{
			Keyword:    keyword,
			OptionID:   opt.ID,
			OptionText: opt.Text,
			PFName:     actor.Name,
			PFCorrect:  opt.Correct,
		}
		r.DecisionQueue = append(r.DecisionQueue, pd)
		r.AppendLog(actor, "submit_decision", map[string]any{
			"keyword": keyword, "option": opt.ID,
		})

		if r.PendingDecision == nil {
			e.promoteNextDecision(r)
		} else if !actor.IsAI {
			// Position counts the pending decision plus everything queued ahead.
			e.B.SendToUser(roomID, actor.Session, events.EventWaitingPMVerify, events.WaitingPMVerifyPayload{
				Keyword:       keyword,
				Msg:           fmt.Sprintf("Decision for %s queued for PM verification (position %d)", keyword, len(r.DecisionQueue)),
				QueuePosition: len(r.DecisionQueue),
			})
		}
		return nil
	})
}

// promoteNextDecision moves the queue head into pending_decision and emits
// the verify prompt exactly once. Runs on the dispatch goroutine, so
// promotion is atomic with respect to every other room operation.
func (e *Engine) promoteNextDecision(r *room.Room) {
	if r.PendingDecision != nil || len(r.DecisionQueue) == 0 {
		return
	}
	pd := r.DecisionQueue[0]
	r.DecisionQueue = r.DecisionQueue[1:]
	r.PendingDecision = &pd

	pmSession, pm, ok := r.UserByRole(models.RolePM)
	if !ok {
		return
	}
	if pm.IsAI {
		if r.Agent != nil {
			r.Agent.OnVerifyRequest(pd)
		}
		return
	}
	threat := e.Registry.Threat(pd.Keyword)
	sop := events.SOPData{}
	if threat != nil {
		sop.Title = threat.SOP.Title
		sop.Content = threat.SOP.Content
	}
	e.B.SendToUser(r.ID, pmSession, events.EventShowPMVerifyPanel, events.ShowPMVerifyPanelPayload{
		Keyword:    pd.Keyword,
		PFUsername: pd.PFName,
		PFDecision: pd.OptionText,
		SOPData:    sop,
	})
}

// verifyOutcome applies the 2x2 CRM matrix.
func verifyOutcome(pfCorrect, approved bool, scores struct {
	CorrectApprove, CorrectReject, WrongApprove, WrongReject int
}) (models.VerifyResult, int) {
	switch {
	case pfCorrect && approved:
		return models.ResultSuccess, scores.CorrectApprove
	case pfCorrect && !approved:
		return models.ResultPMError, scores.CorrectReject
	case !pfCorrect && approved:
		return models.ResultCriticalError, scores.WrongApprove
	default:
		return models.ResultPMCatch, scores.WrongReject
	}
}

// VerifyDecision resolves the pending decision with the PM's verdict,
// applies the scoring matrix, and promotes the next queued decision.
func (e *Engine) VerifyDecision(ctx context.Context, roomID string, actor models.Actor, approved bool) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if actor.Role != models.RolePM {
			return validationErr("wrong_role", "Only the PM verifies decisions")
		}
		pd := r.PendingDecision
		if pd == nil {
			return validationErr("no_pending_decision", "No decision is awaiting verification")
		}
		threat := e.Registry.Threat(pd.Keyword)
		if threat == nil {
			r.PendingDecision = nil
			return validationErr("identify_invalid_threat", "Pending decision references an unknown threat")
		}

		result, delta := verifyOutcome(pd.PFCorrect, approved, struct {
			CorrectApprove, CorrectReject, WrongApprove, WrongReject int
		}{
			threat.Scores.PFCorrectPMApprove,
			threat.Scores.PFCorrectPMReject,
			threat.Scores.PFWrongPMApprove,
			threat.Scores.PFWrongPMReject,
		})

		r.Score += delta
		r.HandledThreats[pd.Keyword] = models.ThreatOutcome{
			PFChoice:   pd.OptionID,
			PFCorrect:  pd.PFCorrect,
			PMApproved: approved,
			Result:     result,
			ScoreDelta: delta,
		}
		delete(r.ActiveThreats, pd.Keyword)
		r.PendingDecision = nil

		r.AppendLog(actor, "verify_decision", map[string]any{
			"keyword":      pd.Keyword,
			"pf_choice":    pd.OptionID,
			"pf_correct":   pd.PFCorrect,
			"approved":     approved,
			"result":       string(result),
			"score_change": delta,
		})

		e.B.Broadcast(roomID, events.EventThreatDecisionResult, events.ThreatDecisionResultPayload{
			Keyword:     pd.Keyword,
			Result:      string(result),
			Msg:         verifyMessage(pd.Keyword, result),
			Color:       result.Color(),
			ScoreChange: delta,
		})
		e.broadcastScore(r)

		e.promoteNextDecision(r)
		return nil
	})
}

func verifyMessage(keyword string, result models.VerifyResult) string {
	switch result {
	case models.ResultSuccess:
		return fmt.Sprintf("Good CRM: correct response to %s cross-checked and approved", keyword)
	case models.ResultPMError:
		return fmt.Sprintf("PM rejected a correct response to %s", keyword)
	case models.ResultCriticalError:
		return fmt.Sprintf("Critical: incorrect response to %s approved without challenge", keyword)
	case models.ResultPMCatch:
		return fmt.Sprintf("PM caught an incorrect response to %s", keyword)
	}
	return ""
}

// StartQuiz delivers the emergency-procedure quiz to the room.
func (e *Engine) StartQuiz(ctx context.Context, roomID string, actor models.Actor) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if r.QuizStarted {
			return validationErr("quiz_started", "The quiz is already underway")
		}
		r.QuizStarted = true

		questions := make([]events.QuizQuestion, 0, len(e.Registry.Quiz))
		for i := range e.Registry.Quiz {
			q := &e.Registry.Quiz[i]
			opts := make([]events.QuizOption, 0, len(q.Options))
			for _, o := range q.Options {
				opts = append(opts, events.QuizOption{ID: o.ID, Text: o.Text})
			}
			questions = append(questions, events.QuizQuestion{ID: q.ID, Question: q.Question, Options: opts})
		}
		e.B.Broadcast(roomID, events.EventShowEmergencyQuiz, events.ShowEmergencyQuizPayload{Questions: questions})
		r.AppendLog(actor, "start_quiz", map[string]any{"questions": len(questions)})

		if _, pm, ok := r.UserByRole(models.RolePM); ok && pm.IsAI && r.Agent != nil {
			r.Agent.OnQuizDelivered()
		}
		return nil
	})
}

// SubmitQuizAnswer scores one quiz answer for the PM.
func (e *Engine) SubmitQuizAnswer(ctx context.Context, roomID string, actor models.Actor, questionID, answer string) error {
	return e.run(ctx, roomID, func(r *room.Room) error {
		if actor.Role != models.RolePM {
			return validationErr("wrong_role", "Only the PM answers the quiz")
		}
		q := e.Registry.Question(questionID)
		if q == nil {
			return validationErr("invalid_question", fmt.Sprintf("Unknown quiz question %q", questionID))
		}
		correctOpt := q.CorrectOption()
		correct := correctOpt != nil && correctOpt.ID == answer
		delta := -5
		if correct {
			delta = 10
		}
		r.Score += delta
		r.QuizResults = append(r.QuizResults, models.QuizResult{
			QuestionID: questionID,
			Chosen:     answer,
			Correct:    correct,
			ScoreDelta: delta,
		})
		r.AppendLog(actor, "quiz_answer", map[string]any{
			"question_id":  questionID,
			"answer":       answer,
			"correct":      correct,
			"score_change": delta,
		})
		e.B.Broadcast(roomID, events.EventQuizAnswerResult, events.QuizAnswerResultPayload{
			QuestionID:  questionID,
			Correct:     correct,
			Explanation: q.Explanation,
			ScoreChange: delta,
		})
		e.broadcastScore(r)
		return nil
	})
}

// acceptableTitles joins the scenario's accepted checklist titles for
// operator-facing messages.
func (e *Engine) acceptableTitles(keys []string) string {
	titles := make([]string, 0, len(keys))
	for _, k := range keys {
		if c := e.Registry.Checklist(k); c != nil {
			titles = append(titles, c.Title)
		}
	}
	return strings.Join(titles, ", ")
}
