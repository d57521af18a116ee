package analysis

import "github.com/truework/truework/internal/models"

// Classify maps a similarity score to a suspicion level. It is pure and total
// over [0,1]. Boundary values belong to the lower-severity bucket (strict >),
// so 0.8 is high, not critical. This table is the sole classification rule in
// the system; every consumer re-deriving a level from a score uses it.
func Classify(score float64) models.SuspicionLevel {
	switch {
	case score > 0.8:
		return models.LevelCritical
	case score > 0.6:
		return models.LevelHigh
	case score > 0.4:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}
