// Package models defines the shared domain types for TEM training sessions.
package models

import "time"

// Role is a cockpit seat.
type Role string

const (
	RolePF Role = "PF"
	RolePM Role = "PM"
)

// Valid reports whether the role is one of the two cockpit seats.
func (r Role) Valid() bool {
	return r == RolePF || r == RolePM
}

// Other returns the opposite seat.
func (r Role) Other() Role {
	if r == RolePF {
		return RolePM
	}
	return RolePF
}

// Mode selects whether the second seat is a human or the AI crew member.
type Mode string

const (
	ModeDualPlayer   Mode = "dual_player"
	ModeSinglePlayer Mode = "single_player"
)

// Phase is the training session phase.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	Phase1       Phase = "phase1"
	Phase2       Phase = "phase2"
	Phase3       Phase = "phase3"
	PhaseEnded   Phase = "ended"
)

// User is one seated participant, keyed in the room by its session handle.
type User struct {
	Name string
	Role Role
	IsAI bool
}

// Actor identifies the originator of a game operation. Human and AI callers
// are indistinguishable below the gateway except for IsAI, which controls
// whether user-directed messages go to a client or to the agent hook.
type Actor struct {
	Session string
	Name    string
	Role    Role
	IsAI    bool
}

// ChatMessage is one entry of the room chat history.
type ChatMessage struct {
	SenderName string    `json:"username"`
	SenderRole Role      `json:"role"`
	Body       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	IsAI       bool      `json:"is_ai"`
	EnableTTS  bool      `json:"enable_tts"`
}

// PendingDecision is a PF decision awaiting PM verification.
type PendingDecision struct {
	Keyword    string
	OptionID   string
	OptionText string
	PFName     string
	PFCorrect  bool
}

// VerifyResult tags the outcome of a PM verification.
type VerifyResult string

const (
	ResultSuccess       VerifyResult = "success"
	ResultPMError       VerifyResult = "pm_error"
	ResultCriticalError VerifyResult = "critical_error"
	ResultPMCatch       VerifyResult = "pm_catch"
)

// Color returns the severity color broadcast with the result.
func (r VerifyResult) Color() string {
	switch r {
	case ResultSuccess:
		return "green"
	case ResultPMError:
		return "orange"
	case ResultCriticalError:
		return "red"
	case ResultPMCatch:
		return "yellow"
	}
	return ""
}

// ThreatOutcome records how one threat was resolved.
type ThreatOutcome struct {
	PFChoice   string
	PFCorrect  bool
	PMApproved bool
	Result     VerifyResult
	ScoreDelta int
}

// QuizResult records one answered quiz question.
type QuizResult struct {
	QuestionID string
	Chosen     string
	Correct    bool
	ScoreDelta int
}

// DetectionStage marks when an event was first noticed.
type DetectionStage string

const (
	DetectedAtPrecursor DetectionStage = "precursor"
	DetectedAtAlert     DetectionStage = "alert"
)

// Detection is the first-detection record for one event. Written once,
// never updated.
type Detection struct {
	Stage DetectionStage
	At    time.Time
}

// Observation is the AI observer's phase-specific projection of room state.
type Observation struct {
	Phase   Phase
	Role    Role
	Context map[string]any
}

// Recommendation is the actionable part of a Strategy.
type Recommendation struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Strategy is the slow model's structured deliberation output.
type Strategy struct {
	Thinking       string         `json:"thinking"`
	Assessment     map[string]any `json:"assessment"`
	Recommendation Recommendation `json:"recommendation"`
	NextFocus      string         `json:"next_focus"`
	Explanation    string         `json:"explanation"`
}

// Action is the executor's concrete game operation.
type Action struct {
	Type      string
	Params    map[string]any
	Immediate bool
}
