package core

// Sport identifies the racket sport a ladder plays.
type Sport string

const (
	SportBadminton  Sport = "BADMINTON"
	SportSquash     Sport = "SQUASH"
	SportTennis     Sport = "TENNIS"
	SportPadel      Sport = "PADEL"
	SportPickleball Sport = "PICKLEBALL"
)

// Tier is the importance weighting bucket for a match (§6 tierWeights).
type Tier string

const (
	TierSanctioned  Tier = "SANCTIONED"
	TierLeague      Tier = "LEAGUE"
	TierSocial      Tier = "SOCIAL"
	TierExhibition  Tier = "EXHIBITION"
	TierDefault     Tier = "DEFAULT"
	TierUnspecified Tier = "UNSPECIFIED"
)

// SynergyParams configures the pair-synergy subsystem (§4.2, §6).
type SynergyParams struct {
	K0                float64
	DeltaMax          float64
	GammaMin          float64
	GammaMax          float64
	ActivationMatches int
	DecayRatePerWeek  float64
	Regularization    float64
}

// IdleParams configures inactivity decay (§4.4 step 1).
type IdleParams struct {
	ActivationDays float64
	RatePerWeek    float64
}

// RegionParams configures region mean-centering (§4.4 step 3).
type RegionParams struct {
	MaxShiftPerDay float64
}

// GraphParams configures graph smoothing (§4.4 step 4).
type GraphParams struct {
	SmoothingLambda  float64
	HorizonDays      int
	SigmaProvisional float64
}

// DriftParams configures drift control (§4.4 step 5).
type DriftParams struct {
	TargetStd     float64
	MaxDailyDelta float64
}

// SexOffsetParams configures the sex-offset controller (§4.3).
type SexOffsetParams struct {
	Enabled        bool
	KFactor        float64
	DeltaMax       float64
	MaxAbs         float64
	Regularization float64
	Baseline       Sex
	MinEdges90d    int
	MaxCIWidth     float64
}

// Params centralizes every tunable constant used by the rating engine
// (C1). Defaults mirror §6's configuration table.
type Params struct {
	BaseMu    float64
	BaseSigma float64
	SigmaMin  float64
	SigmaMax  float64
	SigmaRef  float64

	K0   float64
	KMin float64
	KMax float64

	EtaDown   float64
	EtaUp     float64
	Threshold float64

	RookieBoostMatches int
	RookieKMultiplier  float64

	MismatchLambda float64
	MultiplierCap  float64

	TierWeights map[Tier]float64

	Synergy    SynergyParams
	Idle       IdleParams
	Region     RegionParams
	Graph      GraphParams
	Drift      DriftParams
	SexOffsets SexOffsetParams
}

// DefaultParams returns the §6 documented defaults.
func DefaultParams() Params {
	return Params{
		BaseMu:    1500,
		BaseSigma: 350,
		SigmaMin:  30,
		SigmaMax:  350,
		SigmaRef:  200,

		K0:   24,
		KMin: 8,
		KMax: 48,

		EtaDown:   0.08,
		EtaUp:     0.15,
		Threshold: 0.5,

		RookieBoostMatches: 10,
		RookieKMultiplier:  1.5,

		MismatchLambda: 0.5,
		MultiplierCap:  2.0,

		TierWeights: map[Tier]float64{
			TierSanctioned:  1.25,
			TierLeague:      1.1,
			TierSocial:      0.85,
			TierExhibition:  0.5,
			TierDefault:     1.0,
			TierUnspecified: 1.0,
		},

		Synergy: SynergyParams{
			K0:                10,
			DeltaMax:          6,
			GammaMin:          -120,
			GammaMax:          120,
			ActivationMatches: 5,
			DecayRatePerWeek:  0.01,
			Regularization:    0.02,
		},

		Idle: IdleParams{
			ActivationDays: 14,
			RatePerWeek:    0.03,
		},

		Region: RegionParams{
			MaxShiftPerDay: 2.0,
		},

		Graph: GraphParams{
			SmoothingLambda:  0.1,
			HorizonDays:      90,
			SigmaProvisional: 120,
		},

		Drift: DriftParams{
			TargetStd:     350,
			MaxDailyDelta: 5,
		},

		SexOffsets: SexOffsetParams{
			Enabled:        true,
			KFactor:        4,
			DeltaMax:       3,
			MaxAbs:         60,
			Regularization: 0.02,
			Baseline:       SexM,
			MinEdges90d:    20,
			MaxCIWidth:     40,
		},
	}
}

// TierWeight looks up a tier's weight, falling back to DEFAULT.
func (p Params) TierWeight(t Tier) float64 {
	if w, ok := p.TierWeights[t]; ok {
		return w
	}
	return p.TierWeights[TierDefault]
}

// BetaFor returns the rating-scale constant β for a sport (§4.1).
func BetaFor(sport Sport) float64 {
	switch sport {
	case SportBadminton, SportSquash:
		return 205
	case SportTennis, SportPadel:
		return 230
	case SportPickleball:
		return 220
	default:
		return 220
	}
}
