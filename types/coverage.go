package types

// ReadinessThreshold is the global completeness percentage at or above which
// an entity's data is considered production ready.
const ReadinessThreshold = 90.0

// EntityType identifies what kind of entity a coverage or failure record
// describes.
type EntityType string

// Entity type constants.
const (
	EntityPlayer    EntityType = "PLAYER"
	EntityTeam      EntityType = "TEAM"
	EntityGame      EntityType = "GAME"
	EntityDateLevel EntityType = "DATE_LEVEL"
)

// CoverageResult is the outcome of a completeness check for one entity.
// It is a derived value: computed fresh on every check, never persisted.
type CoverageResult struct {
	// EntityID is the player/team/game identifier the check was run for.
	EntityID string
	// ExpectedCount is the schedule-derived record count.
	ExpectedCount int
	// ActualCount is the observed record count in the upstream source.
	ActualCount int
	// CompletenessPct is min(100, 100*actual/expected). Zero when nothing
	// was expected.
	CompletenessPct float64
	// AgeHours is the age of the most recent upstream record, in hours.
	// Negative when the source reported no timestamp.
	AgeHours float64
	// IsComplete holds when actual >= expected.
	IsComplete bool
	// IsProductionReady holds when CompletenessPct >= ReadinessThreshold.
	IsProductionReady bool
}

// NewCoverageResult derives a CoverageResult from raw counts.
// expected == 0 yields CompletenessPct 0 rather than a division error:
// "nothing expected" is not the same claim as "fully covered".
func NewCoverageResult(entityID string, expected, actual int, ageHours float64) CoverageResult {
	pct := 0.0
	if expected > 0 {
		pct = float64(actual) / float64(expected) * 100
		if pct > 100 {
			pct = 100
		}
	}
	return CoverageResult{
		EntityID:          entityID,
		ExpectedCount:     expected,
		ActualCount:       actual,
		CompletenessPct:   pct,
		AgeHours:          ageHours,
		IsComplete:        actual >= expected,
		IsProductionReady: pct >= ReadinessThreshold,
	}
}

// AlertLevel grades how far behind expectation a backfill is running.
type AlertLevel string

// Alert level constants, ordered by severity.
const (
	AlertOK       AlertLevel = "ok"
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)
