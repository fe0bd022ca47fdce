package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/game"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/tts"
)

// Client message types.
const (
	msgJoin               = "join"
	msgPFIdentifyThreat   = "pf_identify_threat"
	msgPFSubmitDecision   = "pf_submit_decision"
	msgPMVerifyDecision   = "pm_verify_decision"
	msgStartEmergencyQuiz = "start_emergency_quiz"
	msgSubmitQuizAnswer   = "submit_quiz_answer"
	msgReqPhase2          = "req_phase_2"
	msgMonitorGauge       = "monitor_gauge"
	msgSelectChecklist    = "select_checklist"
	msgCheckItem          = "check_item"
	msgSendChatMessage    = "send_chat_message"
	msgRequestTTS         = "request_tts"
)

// dispatch routes one client message to the engine. Validation and capacity
// errors go back to this connection only; nothing from a handler interrupts
// the read loop.
func (g *Gateway) dispatch(ctx context.Context, c *connection, env *Envelope) {
	if g.ObserveMessage != nil {
		g.ObserveMessage(env.Type)
	}

	if env.Type == msgJoin {
		g.handleJoin(ctx, c, env)
		return
	}
	if c.roomID == "" || c.roomID != env.Room {
		g.sendError(c, "join a room before sending requests")
		return
	}
	actor := models.Actor{Session: c.id, Name: c.username, Role: c.role}

	var err error
	switch env.Type {
	case msgPFIdentifyThreat:
		var p struct {
			Keyword string `json:"keyword"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.IdentifyThreat(ctx, env.Room, actor, p.Keyword)
		}
	case msgPFSubmitDecision:
		var p struct {
			Keyword  string `json:"keyword"`
			OptionID string `json:"option_id"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.SubmitDecision(ctx, env.Room, actor, p.Keyword, p.OptionID)
		}
	case msgPMVerifyDecision:
		var p struct {
			Approved bool `json:"approved"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.VerifyDecision(ctx, env.Room, actor, p.Approved)
		}
	case msgStartEmergencyQuiz:
		err = g.engine.StartQuiz(ctx, env.Room, actor)
	case msgSubmitQuizAnswer:
		var p struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.SubmitQuizAnswer(ctx, env.Room, actor, p.QuestionID, p.Answer)
		}
	case msgReqPhase2:
		err = g.engine.RequestPhase2(ctx, env.Room, actor)
	case msgMonitorGauge:
		var p struct {
			GaugeID string `json:"gauge_id"`
		}
		if err = decode(env, &p); err == nil {
			_, err = g.engine.MonitorGauge(ctx, env.Room, actor, p.GaugeID)
		}
	case msgSelectChecklist:
		var p struct {
			Key string `json:"key"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.SelectQRH(ctx, env.Room, actor, p.Key)
		}
	case msgCheckItem:
		var p struct {
			Index int `json:"index"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.CheckItem(ctx, env.Room, actor, p.Index)
		}
	case msgSendChatMessage:
		var p struct {
			Message      string `json:"message"`
			TTSRequested bool   `json:"tts_requested"`
		}
		if err = decode(env, &p); err == nil {
			err = g.engine.SendChat(ctx, env.Room, actor, p.Message, p.TTSRequested)
		}
	case msgRequestTTS:
		var p struct {
			Text           string `json:"text"`
			MessageID      string `json:"message_id"`
			SentenceIndex  int    `json:"sentence_index"`
			TotalSentences int    `json:"total_sentences"`
		}
		if err = decode(env, &p); err == nil {
			err = g.requestTTS(env.Room, p.Text, p.MessageID, p.SentenceIndex)
		}
	default:
		slog.Warn("Unknown client message type", "connection_id", c.id, "type", env.Type)
		return
	}

	if err != nil {
		g.reportError(c, err)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *connection, env *Envelope) {
	var p struct {
		Username string `json:"username"`
		Role     string `json:"role"`
		Mode     string `json:"mode"`
	}
	if err := decode(env, &p); err != nil {
		g.sendError(c, "malformed join payload")
		return
	}
	role := models.Role(p.Role)
	if !role.Valid() {
		g.sendError(c, "role must be PF or PM")
		return
	}
	if env.Room == "" || p.Username == "" {
		g.sendError(c, "room and username are required")
		return
	}
	if c.roomID != "" {
		g.sendError(c, "already seated in a room")
		return
	}
	mode := models.Mode(p.Mode)
	if mode != models.ModeSinglePlayer {
		mode = models.ModeDualPlayer
	}

	// Membership first so the joiner sees the join broadcasts.
	g.joinRoom(c, env.Room)
	if err := g.engine.Join(ctx, env.Room, c.id, p.Username, role, mode); err != nil {
		g.dropMembership(c, env.Room)
		g.reportError(c, err)
		return
	}
	c.roomID = env.Room
	c.username = p.Username
	c.role = role
}

// requestTTS enqueues one sentence for synthesis. Queue saturation drops the
// sentence; the session carries on without it.
func (g *Gateway) requestTTS(roomID, text, messageID string, sentenceIndex int) error {
	if g.tts == nil || text == "" {
		return nil
	}
	err := g.tts.Enqueue(tts.Request{
		Room:          roomID,
		Text:          text,
		MessageID:     messageID,
		SentenceIndex: sentenceIndex,
	})
	if errors.Is(err, tts.ErrQueueFull) {
		slog.Warn("TTS queue full, dropping sentence",
			"room", roomID, "message_id", messageID, "sentence_index", sentenceIndex)
		return nil
	}
	return err
}

// reportError maps engine errors to client frames.
func (g *Gateway) reportError(c *connection, err error) {
	var verr *game.ValidationError
	switch {
	case errors.As(err, &verr):
		g.sendError(c, verr.Msg)
	case errors.Is(err, game.ErrRoomFull):
		g.sendJSON(c, Frame{Type: events.EventRoomFull})
	case errors.Is(err, game.ErrRoomNotFound):
		g.sendError(c, "room not found")
	case errors.Is(err, room.ErrClosed):
		// Room torn down mid-request; the disconnect path cleans up.
	default:
		slog.Error("Request failed", "connection_id", c.id, "error", err)
		g.sendError(c, "internal error")
	}
}

func (g *Gateway) sendError(c *connection, msg string) {
	g.sendJSON(c, Frame{Type: events.EventErrorMsg, Payload: events.ErrorMsgPayload{Msg: msg}})
}

func decode(env *Envelope, v any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, v)
}
