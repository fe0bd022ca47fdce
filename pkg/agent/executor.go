package agent

import (
	"fmt"
	"strings"

	"github.com/temcrew/temserver/pkg/llm"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/scenario"
)

// The fast model handles tightly-scoped questions: quiz answers and
// chat-reply gating. Each response parses into a concrete game call.

const quizPromptTemplate = `Answer this aviation emergency-procedure question.

Question: %s
Options:
%s

Return JSON: {"answer": "<option id>", "reasoning": "..."}`

const chatGatePromptTemplate = `You are the AI crew member (%s seat) in a training cockpit. The human crew member just said: %q

Recent conversation:
%s

Session phase: %s

Decide whether a reply helps the training right now. Stay silent for chatter that needs no answer. Return JSON: {"should_reply": true or false, "reply_message": "<short crew-style reply or empty>", "reasoning": "..."}`

// answerQuiz asks the fast model for an option id; any failure degrades to
// the first option.
func (a *Agent) answerQuiz(q *scenario.QuizQuestion) string {
	var opts strings.Builder
	for _, o := range q.Options {
		fmt.Fprintf(&opts, "- %s: %s\n", o.ID, o.Text)
	}
	raw, err := a.fast.Chat(a.ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(quizPromptTemplate, q.Question, opts.String())},
	})
	if err != nil {
		a.llmFailed("quiz_answer", err)
		return q.Options[0].ID
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := parseJSONBlock(raw, &out); err != nil {
		a.llmFailed("quiz_answer", err)
		return q.Options[0].ID
	}
	for _, o := range q.Options {
		if o.ID == out.Answer {
			return out.Answer
		}
	}
	return q.Options[0].ID
}

// chatReply gates and produces a reply to a human chat message. An empty
// return means stay silent.
func (a *Agent) chatReply(obs *models.Observation, msg models.ChatMessage) (string, error) {
	history, _ := obs.Context["chat"].([]string)
	prompt := fmt.Sprintf(chatGatePromptTemplate, a.role, msg.Body, strings.Join(history, "\n"), obs.Phase)
	raw, err := a.fast.Chat(a.ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	var out struct {
		ShouldReply  bool   `json:"should_reply"`
		ReplyMessage string `json:"reply_message"`
	}
	if err := parseJSONBlock(raw, &out); err != nil {
		return "", err
	}
	if !out.ShouldReply {
		return "", nil
	}
	return out.ReplyMessage, nil
}
