package models

// ActionKind is the category of a point-earning event.
type ActionKind string

const (
	ActionBathroom   ActionKind = "bathroom"
	ActionRating     ActionKind = "rating"
	ActionValidation ActionKind = "validation"
)

// Valid reports whether k is one of the known action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionBathroom, ActionRating, ActionValidation:
		return true
	}
	return false
}

// ValidationQuorum is the number of distinct validators after which a
// bathroom is considered validated.
const ValidationQuorum = 3

// PointValues is the number of points awarded per action kind.
type PointValues struct {
	CreateBathroom int
	Rating         int
	Validation     int
}

// DefaultPointValues returns the production point table.
func DefaultPointValues() PointValues {
	return PointValues{
		CreateBathroom: 15,
		Rating:         5,
		Validation:     10,
	}
}

// For returns the point value of kind.
func (p PointValues) For(kind ActionKind) int {
	switch kind {
	case ActionBathroom:
		return p.CreateBathroom
	case ActionRating:
		return p.Rating
	case ActionValidation:
		return p.Validation
	}
	return 0
}

// DailyLimits caps how many actions of each kind count per user per day.
type DailyLimits struct {
	MaxBathroomsPerDay   int
	MaxRatingsPerDay     int
	MaxValidationsPerDay int
	// MaxPointsPerDay is configuration only; no check consults it.
	MaxPointsPerDay int
}

// DefaultDailyLimits returns the production caps.
func DefaultDailyLimits() DailyLimits {
	return DailyLimits{
		MaxBathroomsPerDay:   100,
		MaxRatingsPerDay:     50,
		MaxValidationsPerDay: 30,
		MaxPointsPerDay:      500,
	}
}

// For returns the daily cap for kind.
func (l DailyLimits) For(kind ActionKind) int {
	switch kind {
	case ActionBathroom:
		return l.MaxBathroomsPerDay
	case ActionRating:
		return l.MaxRatingsPerDay
	case ActionValidation:
		return l.MaxValidationsPerDay
	}
	return 100
}
