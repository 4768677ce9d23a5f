package flow

import (
	"time"

	"github.com/ashureev/cognify/internal/domain"
)

// HesitationThreshold is how long a user may sit on one step under standard
// pacing before the flow treats it as hesitation.
const HesitationThreshold = 45 * time.Second

const (
	hesitationLoadIncrease = 15
	doneLoadDecrease       = 5
	doneLoadFloor          = 10
	notSureLoadIncrease    = 10
)

// CheckForHesitation reports whether more than HesitationThreshold has passed
// since lastInteraction. Gentle pacing never hesitates.
func CheckForHesitation(now, lastInteraction time.Time, pacing domain.Pacing) bool {
	return pacing == domain.PacingStandard && now.Sub(lastInteraction) > HesitationThreshold
}

// applyHesitation runs the detector and applies its effect.
func applyHesitation(s State, now time.Time) (State, bool) {
	if !CheckForHesitation(now, s.LastInteractionTime, s.PacingLevel) {
		return s, false
	}
	s.HesitationCount++
	return s.withLoad(s.MentalLoad + hesitationLoadIncrease), true
}
