package tracker

import "time"

// Classifier decides a player's activity state from fingerprint movement
// and accumulated idle time.
//
// A changed fingerprint always means active, including an immediate
// AFK -> active flip with no debounce. An unchanged fingerprint keeps the
// previous classification until the idle duration crosses the threshold,
// which tolerates players whose raw fields are naturally static for short
// stretches (spectating, holding an angle) without flagging them.
type Classifier struct {
	// AFKThreshold is how long a fingerprint may stay unchanged before the
	// player is classified AFK.
	AFKThreshold time.Duration
}

// Classify returns the classification for the interval that just elapsed
// and whether the fingerprint moved.
func (c Classifier) Classify(prevFP, curFP string, idle time.Duration, prev Classification) (Classification, bool) {
	if curFP != prevFP {
		return Active, true
	}
	if idle >= c.AFKThreshold {
		return AFK, false
	}
	return prev, false
}
