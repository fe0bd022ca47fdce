package scenario

import (
	"math/rand"
	"sort"
	"strings"
)

// Threat returns the threat registered for the keyword, or nil.
func (r *Registry) Threat(keyword string) *Threat {
	t, ok := r.Threats[keyword]
	if !ok {
		return nil
	}
	return &t
}

// Question returns the quiz question with the given id, or nil.
func (r *Registry) Question(id string) *QuizQuestion {
	for i := range r.Quiz {
		if r.Quiz[i].ID == id {
			return &r.Quiz[i]
		}
	}
	return nil
}

// Scenario returns the scenario with the given key, or nil.
func (r *Registry) Scenario(key string) *Scenario {
	s, ok := r.Scenarios[key]
	if !ok {
		return nil
	}
	return &s
}

// Checklist returns the QRH checklist with the given key, or nil.
func (r *Registry) Checklist(key string) *Checklist {
	c, ok := r.QRH[key]
	if !ok {
		return nil
	}
	return &c
}

// ScenarioKeys returns the scenario keys in a stable order.
func (r *Registry) ScenarioKeys() []string {
	keys := make([]string, 0, len(r.Scenarios))
	for k := range r.Scenarios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PickScenario selects a random scenario using the supplied source.
func (r *Registry) PickScenario(rng *rand.Rand) *Scenario {
	keys := r.ScenarioKeys()
	return r.Scenario(keys[rng.Intn(len(keys))])
}

// qrhKeywords maps alert-text keywords to checklist keys. Checked in order
// so that more specific phrases win over bare substrings.
var qrhKeywords = []struct {
	phrase string
	key    string
}{
	{"OIL PRESSURE", "low_oil_pressure"},
	{"CARBURETOR ICING", "carburetor_icing"},
	{"FUEL IMBALANCE", "fuel_imbalance"},
	{"VACUUM", "vacuum_failure"},
	{"ALTERNATOR", "alternator_failure"},
	{"ENGINE FIRE", "engine_fire"},
	{"ELECTRICAL FIRE", "electrical_fire"},
}

// MatchQRH maps an alert message to the checklist key it calls for.
// Returns "" when no keyword matches.
func MatchQRH(alertMessage string) string {
	upper := strings.ToUpper(alertMessage)
	for _, kw := range qrhKeywords {
		if strings.Contains(upper, kw.phrase) {
			return kw.key
		}
	}
	return ""
}
