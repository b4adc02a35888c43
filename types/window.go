package types

// DefaultWindowSizes is the family of rolling windows validated per entity.
var DefaultWindowSizes = []int{5, 10, 15, 20}

// DefaultComputeThreshold is the minimum DNP-adjusted completeness ratio at
// which a window may still be computed, with a degraded-quality flag.
const DefaultComputeThreshold = 0.70

// WindowRecommendation is the per-window compute decision.
type WindowRecommendation string

// Window recommendation constants.
const (
	// RecommendCompute means the window is fully complete after DNP
	// adjustment and may be computed normally.
	RecommendCompute WindowRecommendation = "compute"
	// RecommendComputeWithFlag means the window is incomplete but above the
	// compute threshold; results must carry a degraded-quality flag.
	RecommendComputeWithFlag WindowRecommendation = "compute_with_flag"
	// RecommendSkip means the window is too incomplete to compute without
	// contaminating averages.
	RecommendSkip WindowRecommendation = "skip"
)

// GapClassification explains why a window came up short.
type GapClassification string

// Gap classification constants.
const (
	// GapNone means no games were missing after DNP adjustment.
	GapNone GapClassification = "NO_GAP"
	// GapData means games are missing from the upstream source entirely.
	GapData GapClassification = "DATA_GAP"
	// GapNameUnresolved means the entity could not be mapped to a schedule
	// (e.g. no roster observation for the player).
	GapNameUnresolved GapClassification = "NAME_UNRESOLVED"
)

// WindowResult is the validation outcome for one (entity, window size,
// asOfDate) triple.
type WindowResult struct {
	// WindowSize is the number of games the window spans.
	WindowSize int
	// IsComplete holds when every required game is available.
	IsComplete bool
	// CompletenessRatio is available/required after DNP adjustment, in [0,1].
	CompletenessRatio float64
	// GamesAvailable is the number of games present in the source.
	GamesAvailable int
	// GamesRequired is the DNP-adjusted number of games the window needs.
	GamesRequired int
	// Recommendation is the compute decision for this window.
	Recommendation WindowRecommendation
	// DNPCount is the number of scheduled games the entity legitimately
	// did not play, subtracted from the requirement.
	DNPCount int
	// GapClassification explains a shortfall when one exists.
	GapClassification GapClassification
}
