package scenario

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryThreats(t *testing.T) {
	reg := GetRegistry()

	require.Len(t, reg.Threats, 3)
	for keyword, threat := range reg.Threats {
		assert.Equal(t, keyword, threat.Keyword)
		assert.Len(t, threat.Options, 3)
		assert.NotEmpty(t, threat.SOP.Title)
		assert.Equal(t, 15, threat.Scores.PFCorrectPMApprove)
		assert.Equal(t, -20, threat.Scores.PFWrongPMApprove)
	}

	wind := reg.Threat("24015G25KT")
	require.NotNil(t, wind)
	assert.True(t, wind.Option("standard_procedure").Correct)
	assert.True(t, wind.Option("wait_wind").Correct)
	assert.False(t, wind.Option("ignore_wind").Correct)
	assert.Nil(t, wind.Option("no_such_option"))

	assert.Nil(t, reg.Threat("UNKNOWN"))
}

func TestRegistryQuiz(t *testing.T) {
	reg := GetRegistry()

	require.Len(t, reg.Quiz, 3)
	for i := range reg.Quiz {
		q := &reg.Quiz[i]
		correct := q.CorrectOption()
		require.NotNil(t, correct, "question %s has no correct option", q.ID)
		assert.NotEmpty(t, q.Explanation)
	}

	q := reg.Question("fire_memory_item")
	require.NotNil(t, q)
	assert.Equal(t, "b", q.CorrectOption().ID)
}

func TestRegistryScenarios(t *testing.T) {
	reg := GetRegistry()

	require.Len(t, reg.Scenarios, 3)
	for key, sc := range reg.Scenarios {
		assert.Equal(t, key, sc.Key)
		require.NotEmpty(t, sc.Events)
		for _, ev := range sc.Events {
			assert.GreaterOrEqual(t, ev.PrecursorStart, 0.0)
			assert.Less(t, ev.PrecursorStart, ev.AlertStart, "%s/%s", key, ev.ID)
			assert.Less(t, ev.AlertStart, ev.EventEnd, "%s/%s", key, ev.ID)
			assert.LessOrEqual(t, ev.EventEnd, sc.Duration, "%s/%s", key, ev.ID)
			_, ok := reg.Gauges[ev.Precursor.Gauge]
			assert.True(t, ok, "event %s targets unknown gauge %s", ev.ID, ev.Precursor.Gauge)
		}
		for _, qrh := range sc.AcceptableQRH {
			assert.NotNil(t, reg.Checklist(qrh), "scenario %s accepts unknown checklist %s", key, qrh)
		}
	}

	routine := reg.Scenario("routine_flight")
	require.NotNil(t, routine)
	assert.True(t, routine.AcceptsQRH("fuel_imbalance"))
	assert.False(t, routine.AcceptsQRH("engine_fire"))
}

func TestPickScenarioDeterministic(t *testing.T) {
	reg := GetRegistry()

	a := reg.PickScenario(rand.New(rand.NewSource(7)))
	b := reg.PickScenario(rand.New(rand.NewSource(7)))
	require.NotNil(t, a)
	assert.Equal(t, a.Key, b.Key)

	seen := map[string]bool{}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		seen[reg.PickScenario(rng).Key] = true
	}
	assert.Len(t, seen, 3)
}

func TestMatchQRH(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"🔴 LOW OIL PRESSURE - LAND AS SOON AS POSSIBLE", "low_oil_pressure"},
		{"⚠️ CARBURETOR ICING - RPM DECAY", "carburetor_icing"},
		{"⚠️ FUEL IMBALANCE - 15 GAL DIFFERENCE", "fuel_imbalance"},
		{"⚠️ VACUUM FAILURE - CHECK ATTITUDE INDICATOR", "vacuum_failure"},
		{"⚠️ ALTERNATOR FAILURE - ON BATTERY POWER", "alternator_failure"},
		{"engine fire detected", "engine_fire"},
		{"smoke: electrical fire", "electrical_fire"},
		{"all gauges nominal", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchQRH(tt.message), tt.message)
	}
}

func TestQRHChecklists(t *testing.T) {
	reg := GetRegistry()

	require.Len(t, reg.QRH, 7)
	for key, cl := range reg.QRH {
		assert.Equal(t, key, cl.Key)
		assert.NotEmpty(t, cl.Title)
		require.NotEmpty(t, cl.Items)
		for _, item := range cl.Items {
			assert.Contains(t, item, " - ", "%s: %q", key, item)
		}
	}

	fire := reg.Checklist("engine_fire")
	require.NotNil(t, fire)
	assert.Equal(t, "ENGINE FIRE IN FLIGHT", fire.Title)
	assert.Equal(t, []string{
		"Mixture - CUTOFF",
		"Fuel Valve - OFF",
		"Master Switch - OFF",
		"Cabin Heat - OFF",
		"Airspeed - 105 KIAS",
	}, fire.Items)

	oil := reg.Checklist("low_oil_pressure")
	require.NotNil(t, oil)
	assert.Equal(t, []string{
		"Throttle - REDUCE",
		"Landing Area - SELECT",
		"Prepare - FOR ENGINE FAILURE",
	}, oil.Items)
}

func TestGaugeConfigs(t *testing.T) {
	reg := GetRegistry()

	require.Len(t, reg.GaugeOrder, 7)
	for _, id := range reg.GaugeOrder {
		g, ok := reg.Gauges[id]
		require.True(t, ok, "gauge %s missing", id)
		assert.NotEmpty(t, g.Unit)
		assert.Less(t, g.NormalRange[0], g.NormalRange[1])
	}

	fuel := reg.Gauges["fuel_qty"]
	assert.True(t, fuel.Tanks)
	assert.Equal(t, 25.0, fuel.BaselineLeft)
	assert.Equal(t, 25.0, fuel.BaselineRight)
}

func TestKnowledgeCoversAlertGauges(t *testing.T) {
	reg := GetRegistry()
	for _, sc := range reg.Scenarios {
		for _, ev := range sc.Events {
			k := Knowledge(ev.Precursor.Gauge)
			require.NotNil(t, k, "no knowledge for gauge %s", ev.Precursor.Gauge)
			assert.NotEmpty(t, k.RelatedQRH)
			assert.NotNil(t, reg.Checklist(k.RelatedQRH))
		}
	}
	assert.Nil(t, Knowledge("unknown_gauge"))
}
