package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/temcrew/temserver/pkg/llm"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/scenario"
)

// systemPrompt frames every slow-model call.
const systemPrompt = `You are an experienced general-aviation flight instructor acting as a crew member in a two-pilot TEM training session. Respond ONLY with the requested JSON object, no prose around it.`

const decisionPromptTemplate = `You are the Pilot Flying. A threat was identified during pre-flight review.

Threat: %s
Description: %s

Your options (respond with EXACTLY one of these ids in recommendation.action):
%s

Current session state:
%s

Return JSON:
{"thinking": "...", "assessment": {"threat_type": "...", "risk_level": "..."}, "recommendation": {"action": "<option id>", "confidence": 0.0, "reasoning": "..."}, "next_focus": "...", "explanation": "<one crew-style sentence for the cockpit chat>"}`

// The verify prompt deliberately asks "is this active mitigation vs.
// ignoring the threat", not "should we fly". Naive phrasing made PMs reject
// any mitigation that cost time.
const verifyPromptTemplate = `You are the Pilot Monitoring. The Pilot Flying (%s) responded to threat %q with: %q.

Judge ONE thing: is this response an ACTIVE MITIGATION of the threat, or does it IGNORE the threat? A mitigation that causes delay or inconvenience is still a correct mitigation. Do not judge whether the flight should proceed.

Current session state:
%s

Return JSON:
{"thinking": "...", "assessment": {"threat_recognized": true, "pf_approach": "...", "sop_compliance": "..."}, "recommendation": {"action": "approve" or "reject", "confidence": 0.0, "reasoning": "..."}, "next_focus": "...", "explanation": "<one crew-style sentence for the cockpit chat>"}`

const gaugePromptTemplate = `You are teaching a student pilot who just started monitoring the %s gauge (current value %.1f %s).

Reference notes:
- Normal: %s
- Failure mode: %s
- Consequence: %s

Explain in at most 80 words, as a calm instructor in the cockpit, what this gauge shows and what an abnormal trend would mean. Return JSON: {"explanation": "..."}`

const qrhPromptTemplate = `You are the supporting crew member. The %s checklist was just selected.

Checklist items:
%s

In at most 60 words, justify why this procedure fits the situation and what outcome it protects. Return JSON: {"explanation": "..."}`

func (a *Agent) decisionStrategy(obs *models.Observation, threat *scenario.Threat) (*models.Strategy, error) {
	var opts strings.Builder
	for _, o := range threat.Options {
		fmt.Fprintf(&opts, "- %s: %s\n", o.ID, o.Text)
	}
	prompt := fmt.Sprintf(decisionPromptTemplate, threat.Keyword, threat.Description, opts.String(), renderContext(obs))
	return a.askStrategy(a.slow, prompt)
}

func (a *Agent) verifyStrategy(obs *models.Observation, pd models.PendingDecision) (*models.Strategy, error) {
	prompt := fmt.Sprintf(verifyPromptTemplate, pd.PFName, pd.Keyword, pd.OptionText, renderContext(obs))
	return a.askStrategy(a.slow, prompt)
}

func (a *Agent) gaugeAnalysis(gaugeID string, current float64) (string, error) {
	cfg, ok := a.registry.Gauges[gaugeID]
	if !ok {
		return "", fmt.Errorf("unknown gauge %q", gaugeID)
	}
	k := scenario.Knowledge(gaugeID)
	if k == nil {
		k = &scenario.GaugeKnowledge{}
	}
	prompt := fmt.Sprintf(gaugePromptTemplate, cfg.Name, current, cfg.Unit, k.Normal, k.FailureMode, k.Consequence)
	return a.askExplanation(a.slow, prompt)
}

func (a *Agent) qrhExplanation(checklist *scenario.Checklist) (string, error) {
	prompt := fmt.Sprintf(qrhPromptTemplate, checklist.Title, "- "+strings.Join(checklist.Items, "\n- "))
	return a.askExplanation(a.slow, prompt)
}

func (a *Agent) askStrategy(c Chatter, prompt string) (*models.Strategy, error) {
	raw, err := c.Chat(a.ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	var s models.Strategy
	if err := parseJSONBlock(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *Agent) askExplanation(c Chatter, prompt string) (string, error) {
	raw, err := c.Chat(a.ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Explanation string `json:"explanation"`
	}
	if err := parseJSONBlock(raw, &out); err != nil {
		return "", err
	}
	if out.Explanation == "" {
		return "", fmt.Errorf("model returned no explanation")
	}
	return out.Explanation, nil
}

func renderContext(obs *models.Observation) string {
	data, err := json.Marshal(obs.Context)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// parseJSONBlock parses v out of raw model text. Models often wrap JSON in
// prose or code fences; the fallback extracts the outermost brace block.
func parseJSONBlock(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing model response: %w", err)
	}
	return nil
}
