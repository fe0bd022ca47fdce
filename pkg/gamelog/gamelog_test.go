package gamelog

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesOpenerAndEntries(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "alpha-1")
	require.NoError(t, err)

	err = l.Append(Entry{
		Username: "alice",
		Role:     "PF",
		Action:   "identify_threat",
		Details:  map[string]any{"keyword": "24015G25KT"},
		Phase:    "phase1",
	})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	f, err := os.Open(l.Path())
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var head map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &head))
	assert.Equal(t, "session_created", head["event"])
	assert.Equal(t, "alpha-1", head["room"])

	require.True(t, scanner.Scan())
	var e Entry
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
	assert.Equal(t, "alpha-1", e.Room)
	assert.Equal(t, "identify_threat", e.Action)
	assert.NotEmpty(t, e.Timestamp)
	assert.False(t, scanner.Scan())
}

func TestLoggerSanitizesRoomName(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "room/../etc")
	require.NoError(t, err)
	defer l.Close()

	assert.NotContains(t, l.Path(), "..")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReplayReconstructsScoreAndThreats(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "replay-room")
	require.NoError(t, err)

	require.NoError(t, l.Append(Entry{
		Username: "alice", Role: "PF", Action: "identify_threat",
		Details: map[string]any{"keyword": "24015G25KT"}, Phase: "phase1",
	}))
	require.NoError(t, l.Append(Entry{
		Username: "bob", Role: "PM", Action: "verify_decision",
		Details: map[string]any{
			"keyword": "24015G25KT", "pf_choice": "standard_procedure",
			"pf_correct": true, "approved": true,
			"result": "success", "score_change": float64(15),
		},
		Phase: "phase1", Score: 15,
	}))
	require.NoError(t, l.Append(Entry{
		Username: "bob", Role: "PM", Action: "verify_decision",
		Details: map[string]any{
			"keyword": "Landing_Light_U/S", "pf_choice": "daylight_ok",
			"pf_correct": false, "approved": false,
			"result": "pm_catch", "score_change": float64(5),
		},
		Phase: "phase1", Score: 20,
	}))
	require.NoError(t, l.Append(Entry{
		Username: "bob", Role: "PM", Action: "quiz_answer",
		Details: map[string]any{"question_id": "fire_memory_item", "score_change": float64(-5)},
		Phase:   "phase1", Score: 15,
	}))
	require.NoError(t, l.Close())

	s, err := Replay(l.Path())
	require.NoError(t, err)

	assert.Equal(t, "replay-room", s.Room)
	assert.Equal(t, 15, s.FinalScore)
	assert.Equal(t, 3, s.Records)
	require.Len(t, s.HandledThreats, 2)

	wind := s.HandledThreats["24015G25KT"]
	assert.Equal(t, "success", wind.Result)
	assert.True(t, wind.PFCorrect)
	assert.True(t, wind.PMApproved)
	assert.Equal(t, 15, wind.ScoreDelta)

	light := s.HandledThreats["Landing_Light_U/S"]
	assert.Equal(t, "pm_catch", light.Result)
	assert.False(t, light.PFCorrect)
	assert.Equal(t, 5, light.ScoreDelta)
}

func TestReplayMissingFile(t *testing.T) {
	_, err := Replay("/nonexistent/file.jsonl")
	assert.Error(t, err)
}
