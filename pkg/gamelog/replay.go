package gamelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// ThreatRecord is the replayed outcome of one threat.
type ThreatRecord struct {
	PFChoice   string
	PFCorrect  bool
	PMApproved bool
	Result     string
	ScoreDelta int
}

// Session is the state reconstructed from a session log.
type Session struct {
	Room           string
	FinalScore     int
	HandledThreats map[string]ThreatRecord
	Records        int
}

// Replay reads a session log and reconstructs the final score and the
// handled-threats map by summing score_change deltas, independent of the
// running Score column.
func Replay(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session log: %w", err)
	}
	defer f.Close()

	s := &Session{HandledThreats: map[string]ThreatRecord{}}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if line == 1 {
			var head opener
			if err := json.Unmarshal(raw, &head); err == nil && head.Event == "session_created" {
				s.Room = head.Room
				continue
			}
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("parsing log line %d: %w", line, err)
		}
		s.Records++
		if s.Room == "" {
			s.Room = e.Room
		}
		if delta, ok := numberField(e.Details, "score_change"); ok {
			s.FinalScore += int(delta)
		}
		if e.Action == "verify_decision" {
			keyword, _ := e.Details["keyword"].(string)
			if keyword == "" {
				continue
			}
			rec := ThreatRecord{}
			rec.PFChoice, _ = e.Details["pf_choice"].(string)
			rec.PFCorrect, _ = e.Details["pf_correct"].(bool)
			rec.PMApproved, _ = e.Details["approved"].(bool)
			rec.Result, _ = e.Details["result"].(string)
			if delta, ok := numberField(e.Details, "score_change"); ok {
				rec.ScoreDelta = int(delta)
			}
			s.HandledThreats[keyword] = rec
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading session log: %w", err)
	}
	return s, nil
}

func numberField(details map[string]any, key string) (float64, bool) {
	v, ok := details[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
