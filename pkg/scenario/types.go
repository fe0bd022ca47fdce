// Package scenario holds the read-only training data registry: Phase-1
// threats and the emergency quiz, Phase-2 multi-event scenarios with gauge
// configurations and precursor patterns, and the QRH checklist library.
package scenario

// InfoCard is a pre-flight information bulletin shown at Phase-1 start
// (METAR, aircraft status, pilot status).
type InfoCard struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Option is one selectable response to a threat or quiz question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// SOP is the standard-operating-procedure card the PM consults while
// verifying a PF decision.
type SOP struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
}

// ScoreMatrix is the 2x2 CRM scoring matrix applied when the PM verifies a
// PF decision. The pf_wrong+pm_approve cell is the most punishing so that
// mutual cross-check dominates any single-actor strategy.
type ScoreMatrix struct {
	PFCorrectPMApprove int `json:"pf_correct_pm_approve"`
	PFCorrectPMReject  int `json:"pf_correct_pm_reject"`
	PFWrongPMApprove   int `json:"pf_wrong_pm_approve"`
	PFWrongPMReject    int `json:"pf_wrong_pm_reject"`
}

// Threat is a Phase-1 threat record keyed by the keyword the PF must spot in
// the information bulletins.
type Threat struct {
	Keyword     string
	Type        string
	Description string
	Options     []Option
	SOP         SOP
	Scores      ScoreMatrix
}

// Option returns the option with the given id, or nil.
func (t *Threat) Option(id string) *Option {
	for i := range t.Options {
		if t.Options[i].ID == id {
			return &t.Options[i]
		}
	}
	return nil
}

// QuizQuestion is one emergency-procedure knowledge question answered by the
// PM at the end of Phase 1.
type QuizQuestion struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Question    string   `json:"question"`
	Options     []Option `json:"options"`
	Explanation string   `json:"explanation"`
}

// CorrectOption returns the correct option for the question, or nil.
func (q *QuizQuestion) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].Correct {
			return &q.Options[i]
		}
	}
	return nil
}

// Pattern identifies a precursor anomaly shape on a gauge.
type Pattern string

const (
	PatternAsymmetric    Pattern = "asymmetric"
	PatternFluctuateDown Pattern = "fluctuate_down"
	PatternGradualDrop   Pattern = "gradual_drop"
	PatternDischarge     Pattern = "discharge"
)

// Severity grades a Phase-2 alert.
type Severity string

const (
	SeverityCaution Severity = "caution"
	SeverityWarning Severity = "warning"
	SeverityFailure Severity = "failure"
)

// Precursor describes the sub-alert anomaly window of an event.
type Precursor struct {
	Gauge       string
	Pattern     Pattern
	Description string
	Visual      string
}

// Alert is the explicit annunciation fired at alert_start.
type Alert struct {
	Severity Severity
	Message  string
}

// Event is one scripted failure inside a Phase-2 scenario. Time fields are
// seconds from simulation start and satisfy
// 0 <= PrecursorStart < AlertStart < EventEnd <= scenario duration.
type Event struct {
	ID             string
	Name           string
	PrecursorStart float64
	AlertStart     float64
	EventEnd       float64
	Precursor      Precursor
	Alert          Alert
	DetectionScore int
	ReactionScore  int
}

// Scenario is a Phase-2 flight script: a duration, an event timeline, and
// the set of QRH checklists accepted as a correct response.
type Scenario struct {
	Key           string
	Name          string
	Description   string
	Duration      float64
	AcceptableQRH []string
	Events        []Event
}

// AcceptsQRH reports whether the checklist key is a correct response to this
// scenario's failures.
func (s *Scenario) AcceptsQRH(key string) bool {
	for _, k := range s.AcceptableQRH {
		if k == key {
			return true
		}
	}
	return false
}

// GaugeConfig describes one instrument: its resting baseline and the band
// considered normal. Fuel quantity uses per-tank baselines and publishes as
// <id>_left / <id>_right.
type GaugeConfig struct {
	Name          string     `json:"name"`
	Baseline      float64    `json:"baseline,omitempty"`
	BaselineLeft  float64    `json:"baseline_left,omitempty"`
	BaselineRight float64    `json:"baseline_right,omitempty"`
	Tanks         bool       `json:"-"`
	NormalRange   [2]float64 `json:"normal_range"`
	Unit          string     `json:"unit"`
}

// Checklist is one QRH emergency procedure.
type Checklist struct {
	Key   string   `json:"key"`
	Title string   `json:"title"`
	Items []string `json:"items"`
}
