package scenario

// GaugeKnowledge is the teaching brief behind one instrument, used when the
// AI crew member explains an abnormal indication.
type GaugeKnowledge struct {
	Normal      string
	FailureMode string
	Consequence string
	RelatedQRH  string
}

// gaugeKnowledge is keyed by gauge id.
var gaugeKnowledge = map[string]GaugeKnowledge{
	"oil_p": {
		Normal:      "75-85 PSI in cruise",
		FailureMode: "Pressure loss from oil leak, pump failure, or low quantity",
		Consequence: "Engine seizure within minutes once pressure is gone",
		RelatedQRH:  "low_oil_pressure",
	},
	"rpm": {
		Normal:      "2350-2450 RPM at cruise power",
		FailureMode: "Gradual RPM decay at fixed throttle indicates carburetor ice",
		Consequence: "Progressive power loss, possible engine stoppage",
		RelatedQRH:  "carburetor_icing",
	},
	"fuel_qty": {
		Normal:      "20-30 GAL per tank, balanced within 5 GAL",
		FailureMode: "Asymmetric burn from selector position or venting issue",
		Consequence: "Lateral trim change and early fuel exhaustion on one side",
		RelatedQRH:  "fuel_imbalance",
	},
	"vacuum": {
		Normal:      "4.5-5.5 IN HG",
		FailureMode: "Vacuum pump shear, suction decays over minutes",
		Consequence: "Attitude indicator and heading indicator slowly tumble",
		RelatedQRH:  "vacuum_failure",
	},
	"ammeter": {
		Normal:      "Near zero, slight charge after start",
		FailureMode: "Steady discharge indicates alternator offline",
		Consequence: "Battery depletion, loss of radios and electric instruments",
		RelatedQRH:  "alternator_failure",
	},
	"spd": {
		Normal:      "100-110 KIAS in cruise",
		FailureMode: "Pitot or static blockage gives frozen or drifting reads",
		Consequence: "Unreliable airspeed, cross-check GPS and attitude",
		RelatedQRH:  "",
	},
	"alt": {
		Normal:      "5400-5600 FT on the cruise block",
		FailureMode: "Static blockage freezes the altimeter",
		Consequence: "Altitude deviations go unnoticed",
		RelatedQRH:  "",
	},
}

// Knowledge returns the teaching brief for a gauge id, or nil.
func Knowledge(gauge string) *GaugeKnowledge {
	k, ok := gaugeKnowledge[gauge]
	if !ok {
		return nil
	}
	return &k
}
