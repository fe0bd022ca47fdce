// Package events defines the server→client message names and their typed
// payloads. The gateway wraps each payload in a {type, payload} frame; both
// the game engine and the simulation loop publish through these types so
// the wire shape lives in one place.
package events

import "github.com/temcrew/temserver/pkg/models"

// Server → client message names.
const (
	EventUserCountUpdate      = "user_count_update"
	EventRoomFull             = "room_full"
	EventUserLeft             = "user_left"
	EventStartPhase1          = "start_phase_1"
	EventShowPFDecisionModal  = "show_pf_decision_modal"
	EventShowPMVerifyPanel    = "show_pm_verify_panel"
	EventWaitingPMVerify      = "waiting_pm_verify"
	EventThreatDecisionResult = "threat_decision_result"
	EventUpdateScore          = "update_score"
	EventShowEmergencyQuiz    = "show_emergency_quiz"
	EventQuizAnswerResult     = "quiz_answer_result"
	EventStartPhase2          = "start_phase_2"
	EventFlightUpdate         = "flight_update"
	EventEventTrigger         = "event_trigger"
	EventPrecursorDetected    = "precursor_detected"
	EventGaugeMonitored       = "gauge_monitored"
	EventMissionComplete      = "mission_complete"
	EventShowChecklist        = "show_checklist"
	EventItemChecked          = "item_checked"
	EventChecklistComplete    = "checklist_complete"
	EventChatMessage          = "chat_message"
	EventTTSAudio             = "tts_audio"
	EventSysMsg               = "sys_msg"
	EventErrorMsg             = "error_msg"
)

// UserCountUpdatePayload is broadcast whenever room occupancy changes.
type UserCountUpdatePayload struct {
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
}

// UserLeftPayload is broadcast when a user disconnects.
type UserLeftPayload struct {
	Username       string `json:"username"`
	Role           string `json:"role"`
	RemainingCount int    `json:"remaining_count"`
}

// InfoCard mirrors scenario.InfoCard on the wire.
type InfoCard struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Phase1Data is the pre-flight briefing block.
type Phase1Data struct {
	InfoCards []InfoCard `json:"info_cards"`
}

// StartPhase1Payload carries the pre-flight information bulletins.
type StartPhase1Payload struct {
	Data Phase1Data `json:"data"`
}

// DecisionOption is one selectable response shown to the PF.
type DecisionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ShowPFDecisionModalPayload is sent to the PF after a threat is identified.
type ShowPFDecisionModalPayload struct {
	Keyword     string           `json:"keyword"`
	Description string           `json:"description"`
	Options     []DecisionOption `json:"options"`
}

// SOPData is the standard-operating-procedure card shown to the PM.
type SOPData struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
}

// ShowPMVerifyPanelPayload is sent to the PM when a decision is promoted
// for verification.
type ShowPMVerifyPanelPayload struct {
	Keyword    string  `json:"keyword"`
	PFUsername string  `json:"pf_username"`
	PFDecision string  `json:"pf_decision"`
	SOPData    SOPData `json:"sop_data"`
}

// WaitingPMVerifyPayload is sent to a human PF while a decision sits in the
// verification queue.
type WaitingPMVerifyPayload struct {
	Keyword       string `json:"keyword"`
	Msg           string `json:"msg"`
	QueuePosition int    `json:"queue_position"`
}

// ThreatDecisionResultPayload is broadcast after the PM verifies a decision.
type ThreatDecisionResultPayload struct {
	Keyword     string `json:"keyword"`
	Result      string `json:"result"` // success, pm_error, critical_error, pm_catch
	Msg         string `json:"msg"`
	Color       string `json:"color"`
	ScoreChange int    `json:"score_change"`
}

// UpdateScorePayload carries the running room score.
type UpdateScorePayload struct {
	Score int `json:"score"`
}

// QuizOption is one answer choice, correctness withheld.
type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuizQuestion is one question as delivered to clients.
type QuizQuestion struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Options  []QuizOption `json:"options"`
}

// ShowEmergencyQuizPayload delivers the quiz questions.
type ShowEmergencyQuizPayload struct {
	Questions []QuizQuestion `json:"questions"`
}

// QuizAnswerResultPayload is broadcast after each quiz answer.
type QuizAnswerResultPayload struct {
	QuestionID  string `json:"question_id"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
	ScoreChange int    `json:"score_change"`
}

// StartPhase2Payload announces the simulation start.
type StartPhase2Payload struct {
	Duration float64 `json:"duration"`
}

// FlightUpdatePayload carries every gauge value plus mission progress.
// Gauges is keyed by gauge id, with fuel split into fuel_qty_left/right.
type FlightUpdatePayload struct {
	Gauges   map[string]float64 `json:"gauges"`
	Progress float64            `json:"progress"`
}

// EventTriggerPayload is broadcast once when an event's alert fires.
type EventTriggerPayload struct {
	Type     string  `json:"type"` // caution, warning, failure
	Msg      string  `json:"msg"`
	Progress float64 `json:"progress"`
}

// PrecursorDetectedPayload is broadcast when a monitored gauge catches a
// precursor before its alert.
type PrecursorDetectedPayload struct {
	EventName string `json:"event_name"`
	Gauge     string `json:"gauge"`
	Score     int    `json:"score"`
	Msg       string `json:"msg"`
}

// GaugeMonitoredPayload confirms a gauge was tagged for monitoring.
type GaugeMonitoredPayload struct {
	GaugeID string `json:"gauge_id"`
	Msg     string `json:"msg"`
}

// MissionCompletePayload ends Phase 2.
type MissionCompletePayload struct {
	Score   int    `json:"score"`
	Result  string `json:"result"` // Passed or Debrief Required
	Summary string `json:"summary"`
}

// ShowChecklistPayload delivers the selected QRH checklist.
type ShowChecklistPayload struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
	Msg   string   `json:"msg"`
}

// ItemCheckedPayload is broadcast when a checklist item is marked complete.
type ItemCheckedPayload struct {
	Index int    `json:"index"`
	Role  string `json:"role"`
}

// ChecklistCompletePayload is broadcast when every item is checked.
type ChecklistCompletePayload struct {
	Msg    string `json:"msg"`
	QRHKey string `json:"qrh_key"`
}

// ChatMessagePayload is the broadcast form of a chat message.
type ChatMessagePayload struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	EnableTTS bool   `json:"enable_tts"`
}

// NewChatMessagePayload converts a stored chat message to its wire form.
func NewChatMessagePayload(msg models.ChatMessage) ChatMessagePayload {
	return ChatMessagePayload{
		Username:  msg.SenderName,
		Role:      string(msg.SenderRole),
		Message:   msg.Body,
		Timestamp: msg.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		EnableTTS: msg.EnableTTS,
	}
}

// TTSAudioPayload carries one synthesized sentence. Clients reassemble by
// sentence_index; the server does not reorder.
type TTSAudioPayload struct {
	MessageID     string `json:"message_id"`
	SentenceIndex int    `json:"sentence_index"`
	AudioBase64   string `json:"audio_base64"`
}

// SysMsgPayload is a room-scoped system notice.
type SysMsgPayload struct {
	Msg string `json:"msg"`
}

// ErrorMsgPayload reports a validation or capacity error to one client.
type ErrorMsgPayload struct {
	Msg string `json:"msg"`
}
