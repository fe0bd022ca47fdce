package scenario

import "sync"

// Registry holds all built-in training data.
// Tables are read-only after initialization; callers must not mutate them.
type Registry struct {
	InfoCards  []InfoCard
	Threats    map[string]Threat
	Quiz       []QuizQuestion
	Scenarios  map[string]Scenario
	Gauges     map[string]GaugeConfig
	GaugeOrder []string
	QRH        map[string]Checklist
}

var (
	registry     *Registry
	registryOnce sync.Once
)

// GetRegistry returns the singleton built-in registry (thread-safe, lazy-initialized)
func GetRegistry() *Registry {
	registryOnce.Do(initRegistry)
	return registry
}

func initRegistry() {
	registry = &Registry{
		InfoCards:  initInfoCards(),
		Threats:    initThreats(),
		Quiz:       initQuiz(),
		Scenarios:  initScenarios(),
		Gauges:     initGauges(),
		GaugeOrder: []string{"spd", "alt", "oil_p", "rpm", "fuel_qty", "vacuum", "ammeter"},
		QRH:        initQRH(),
	}
}

func initInfoCards() []InfoCard {
	return []InfoCard{
		{
			Label:   "METAR",
			Content: "CYXH 211800Z 24015G25KT 15SM FEW030",
		},
		{
			Label:   "Aircraft",
			Content: "C-GABC Fuel: Full Snags: Landing_Light_U/S",
		},
		{
			Label:   "Pilot",
			Content: "Pilot_A: Rest_8hrs Pilot_B: Recovering_from_Cold",
		},
	}
}

// defaultScores is the CRM score matrix shared by all built-in threats.
func defaultScores() ScoreMatrix {
	return ScoreMatrix{
		PFCorrectPMApprove: 15,
		PFCorrectPMReject:  -5,
		PFWrongPMApprove:   -20,
		PFWrongPMReject:    5,
	}
}

func initThreats() map[string]Threat {
	return map[string]Threat{
		"24015G25KT": {
			Keyword:     "24015G25KT",
			Type:        "environmental",
			Description: "Gusting crosswind 15 knots gusting 25 on runway 24",
			Options: []Option{
				{ID: "standard_procedure", Text: "Apply crosswind landing procedure and brief gust factor", Correct: true},
				{ID: "wait_wind", Text: "Delay departure until gusts subside below limits", Correct: true},
				{ID: "ignore_wind", Text: "Within demonstrated crosswind, no action needed", Correct: false},
			},
			SOP: SOP{
				Title: "Wind Limitations",
				Content: []string{
					"Max demonstrated crosswind component: 15 kt",
					"Add half the gust factor to approach speed",
					"Consider delay when gusts exceed personal minimums",
				},
			},
			Scores: defaultScores(),
		},
		"Landing_Light_U/S": {
			Keyword:     "Landing_Light_U/S",
			Type:        "aircraft",
			Description: "Landing light unserviceable per aircraft snag sheet",
			Options: []Option{
				{ID: "check_mel", Text: "Check MEL for day VFR dispatch relief", Correct: true},
				{ID: "daylight_ok", Text: "Daytime flight, lights are irrelevant", Correct: false},
				{ID: "defer_flight", Text: "Defer the flight until the light is repaired", Correct: true},
			},
			SOP: SOP{
				Title: "MEL Procedures",
				Content: []string{
					"Any inoperative equipment must be checked against the MEL",
					"Landing light required for night operations for hire",
					"Placard inoperative items before flight",
				},
			},
			Scores: defaultScores(),
		},
		"Recovering_from_Cold": {
			Keyword:     "Recovering_from_Cold",
			Type:        "human",
			Description: "Crew member recently recovering from a cold",
			Options: []Option{
				{ID: "imsafe_check", Text: "Run the IMSAFE checklist on the affected pilot", Correct: true},
				{ID: "simple_flight", Text: "Short flight, medication will cover it", Correct: false},
				{ID: "monitor_condition", Text: "Brief symptoms and agree on incapacitation cues", Correct: true},
			},
			SOP: SOP{
				Title: "Fitness for Flight",
				Content: []string{
					"IMSAFE: Illness, Medication, Stress, Alcohol, Fatigue, Emotion",
					"Sinus blockage risks barotrauma during descent",
					"When in doubt, stay on the ground",
				},
			},
			Scores: defaultScores(),
		},
	}
}

func initQuiz() []QuizQuestion {
	return []QuizQuestion{
		{
			ID:       "engine_failure_turn",
			Type:     "emergency",
			Question: "Engine failure after takeoff: minimum altitude to attempt a turn back to the runway?",
			Options: []Option{
				{ID: "a", Text: "200 ft AGL"},
				{ID: "b", Text: "500 ft AGL", Correct: true},
				{ID: "c", Text: "Any altitude if the runway is long"},
			},
			Explanation: "Below 500 ft AGL land ahead within 30 degrees of runway heading",
		},
		{
			ID:       "fire_memory_item",
			Type:     "emergency",
			Question: "Engine fire in flight: first memory item?",
			Options: []Option{
				{ID: "a", Text: "Master Switch OFF"},
				{ID: "b", Text: "Mixture CUTOFF", Correct: true},
				{ID: "c", Text: "Cabin Heat OFF"},
			},
			Explanation: "Starve the fire of fuel first: Mixture CUTOFF, then fuel selector OFF",
		},
		{
			ID:       "electrical_fire",
			Type:     "emergency",
			Question: "Electrical fire with smoke in the cabin: first action?",
			Options: []Option{
				{ID: "a", Text: "Open windows immediately"},
				{ID: "b", Text: "Master Switch OFF", Correct: true},
				{ID: "c", Text: "Discharge extinguisher at the panel"},
			},
			Explanation: "Remove electrical power first, then fight the fire and ventilate",
		},
	}
}

func initScenarios() map[string]Scenario {
	return map[string]Scenario{
		"routine_flight": {
			Key:           "routine_flight",
			Name:          "Routine Cross-Country",
			Description:   "Normal cruise with developing fuel imbalance and vacuum failure",
			Duration:      180,
			AcceptableQRH: []string{"fuel_imbalance", "vacuum_failure"},
			Events: []Event{
				{
					ID:             "fuel_imbalance",
					Name:           "Fuel Imbalance",
					PrecursorStart: 20,
					AlertStart:     35,
					EventEnd:       60,
					Precursor: Precursor{
						Gauge:       "fuel_qty",
						Pattern:     PatternAsymmetric,
						Description: "Left and right tank quantities diverging",
						Visual:      "needle_split",
					},
					Alert: Alert{
						Severity: SeverityCaution,
						Message:  "⚠️ FUEL IMBALANCE - 15 GAL DIFFERENCE",
					},
					DetectionScore: 20,
					ReactionScore:  5,
				},
				{
					ID:             "vacuum_failure",
					Name:           "Vacuum Failure",
					PrecursorStart: 100,
					AlertStart:     115,
					EventEnd:       150,
					Precursor: Precursor{
						Gauge:       "vacuum",
						Pattern:     PatternGradualDrop,
						Description: "Suction slowly decaying below the green arc",
						Visual:      "slow_decay",
					},
					Alert: Alert{
						Severity: SeverityWarning,
						Message:  "⚠️ VACUUM FAILURE - CHECK ATTITUDE INDICATOR",
					},
					DetectionScore: 20,
					ReactionScore:  5,
				},
			},
		},
		"critical_situation": {
			Key:           "critical_situation",
			Name:          "Critical Oil Pressure",
			Description:   "Short flight dominated by a progressive oil pressure loss",
			Duration:      90,
			AcceptableQRH: []string{"low_oil_pressure"},
			Events: []Event{
				{
					ID:             "oil_pressure_loss",
					Name:           "Oil Pressure Loss",
					PrecursorStart: 15,
					AlertStart:     30,
					EventEnd:       80,
					Precursor: Precursor{
						Gauge:       "oil_p",
						Pattern:     PatternFluctuateDown,
						Description: "Oil pressure fluctuating with a downward trend",
						Visual:      "needle_jitter",
					},
					Alert: Alert{
						Severity: SeverityFailure,
						Message:  "🔴 LOW OIL PRESSURE - LAND AS SOON AS POSSIBLE",
					},
					DetectionScore: 25,
					ReactionScore:  5,
				},
			},
		},
		"winter_ops": {
			Key:           "winter_ops",
			Name:          "Winter Operations",
			Description:   "Cold weather cruise with carburetor icing and alternator failure",
			Duration:      180,
			AcceptableQRH: []string{"carburetor_icing", "alternator_failure"},
			Events: []Event{
				{
					ID:             "carb_ice",
					Name:           "Carburetor Icing",
					PrecursorStart: 25,
					AlertStart:     40,
					EventEnd:       70,
					Precursor: Precursor{
						Gauge:       "rpm",
						Pattern:     PatternGradualDrop,
						Description: "RPM creeping down at constant throttle",
						Visual:      "slow_decay",
					},
					Alert: Alert{
						Severity: SeverityCaution,
						Message:  "⚠️ CARBURETOR ICING - RPM DECAY",
					},
					DetectionScore: 20,
					ReactionScore:  5,
				},
				{
					ID:             "alternator_failure",
					Name:           "Alternator Failure",
					PrecursorStart: 105,
					AlertStart:     120,
					EventEnd:       160,
					Precursor: Precursor{
						Gauge:       "ammeter",
						Pattern:     PatternDischarge,
						Description: "Ammeter showing battery discharge",
						Visual:      "negative_drift",
					},
					Alert: Alert{
						Severity: SeverityWarning,
						Message:  "⚠️ ALTERNATOR FAILURE - ON BATTERY POWER",
					},
					DetectionScore: 20,
					ReactionScore:  5,
				},
			},
		},
	}
}

func initGauges() map[string]GaugeConfig {
	return map[string]GaugeConfig{
		"spd": {
			Name:        "Airspeed",
			Baseline:    105,
			NormalRange: [2]float64{100, 110},
			Unit:        "KIAS",
		},
		"alt": {
			Name:        "Altitude",
			Baseline:    5500,
			NormalRange: [2]float64{5400, 5600},
			Unit:        "FT",
		},
		"oil_p": {
			Name:        "Oil Pressure",
			Baseline:    80,
			NormalRange: [2]float64{75, 85},
			Unit:        "PSI",
		},
		"rpm": {
			Name:        "Engine RPM",
			Baseline:    2400,
			NormalRange: [2]float64{2350, 2450},
			Unit:        "RPM",
		},
		"fuel_qty": {
			Name:          "Fuel Quantity",
			BaselineLeft:  25,
			BaselineRight: 25,
			Tanks:         true,
			NormalRange:   [2]float64{20, 30},
			Unit:          "GAL",
		},
		"vacuum": {
			Name:        "Vacuum",
			Baseline:    5.0,
			NormalRange: [2]float64{4.5, 5.5},
			Unit:        "IN HG",
		},
		"ammeter": {
			Name:        "Ammeter",
			Baseline:    0,
			NormalRange: [2]float64{-2, 2},
			Unit:        "AMPS",
		},
	}
}

func initQRH() map[string]Checklist {
	return map[string]Checklist{
		"low_oil_pressure": {
			Key:   "low_oil_pressure",
			Title: "LOW OIL PRESSURE",
			Items: []string{
				"Throttle - REDUCE",
				"Landing Area - SELECT",
				"Prepare - FOR ENGINE FAILURE",
			},
		},
		"engine_fire": {
			Key:   "engine_fire",
			Title: "ENGINE FIRE IN FLIGHT",
			Items: []string{
				"Mixture - CUTOFF",
				"Fuel Valve - OFF",
				"Master Switch - OFF",
				"Cabin Heat - OFF",
				"Airspeed - 105 KIAS",
			},
		},
		"electrical_fire": {
			Key:   "electrical_fire",
			Title: "ELECTRICAL FIRE",
			Items: []string{
				"Master Switch - OFF",
				"Vents/Cabin Air - CLOSED",
				"Fire Extinguisher - ACTIVATE",
				"Avionics - OFF",
			},
		},
		"carburetor_icing": {
			Key:   "carburetor_icing",
			Title: "CARBURETOR ICING",
			Items: []string{
				"Carburetor Heat - FULL ON",
				"Throttle - OPEN slowly",
				"Monitor - RPM RECOVERY",
				"Mixture - ADJUST",
			},
		},
		"fuel_imbalance": {
			Key:   "fuel_imbalance",
			Title: "FUEL IMBALANCE",
			Items: []string{
				"Fuel Selector - SWITCH to fuller tank",
				"Cross-feed - OPEN (if available)",
				"Monitor - FUEL QTY",
				"Plan - EARLY LANDING if severe",
			},
		},
		"vacuum_failure": {
			Key:   "vacuum_failure",
			Title: "VACUUM SYSTEM FAILURE",
			Items: []string{
				"Verify - ATTITUDE INDICATOR unreliable",
				"Use - TURN COORDINATOR for bank",
				"Refer - MAGNETIC COMPASS",
				"Avoid - IMC if possible",
			},
		},
		"alternator_failure": {
			Key:   "alternator_failure",
			Title: "ALTERNATOR FAILURE",
			Items: []string{
				"Alternator - CYCLE (OFF then ON)",
				"If no recovery - SHED LOAD",
				"Avionics - MINIMIZE",
				"Battery - MONITOR voltage",
				"Plan - NEAREST AIRPORT",
			},
		},
	}
}
