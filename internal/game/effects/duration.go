package effects

// Duration represents how long an effect lasts.
type Duration string

const (
	// DurationEndOfTurn - effect expires at end of turn
	DurationEndOfTurn Duration = "EndOfTurn"

	// DurationEndOfCombat - effect expires at end of combat
	DurationEndOfCombat Duration = "EndOfCombat"

	// DurationOneUse - effect is consumed by its first application
	DurationOneUse Duration = "OneUse"

	// DurationUntilSourceLeaves - effect lasts while its source remains
	// on the battlefield
	DurationUntilSourceLeaves Duration = "UntilSourceLeaves"

	// DurationPermanent - effect never expires on its own
	DurationPermanent Duration = "Permanent"
)

// expiresAt reports whether an effect with the given duration should be
// dropped at the named expiry point.
func expiresAt(d Duration, point Duration) bool {
	switch point {
	case DurationEndOfCombat:
		return d == DurationEndOfCombat
	case DurationEndOfTurn:
		// End of turn also sweeps anything scoped to the combat that
		// just happened this turn.
		return d == DurationEndOfTurn || d == DurationEndOfCombat
	default:
		return false
	}
}
