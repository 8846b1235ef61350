package domain

// Confidence bounds. Every confidence value in the system is clamped to
// this range; rounding happens only at presentation time.
const (
	ConfidenceFloor   = 0.05
	ConfidenceCeiling = 0.95
)

// ClampConfidence bounds c to [ConfidenceFloor, ConfidenceCeiling].
func ClampConfidence(c float64) float64 {
	if c < ConfidenceFloor {
		return ConfidenceFloor
	}

	if c > ConfidenceCeiling {
		return ConfidenceCeiling
	}

	return c
}
