package rampart

import "time"

// neutralSignal is substituted for any missing trust signal so partial
// information degrades trust gracefully instead of failing aggregation.
const neutralSignal = 0.5

// AggregateTrust combines the weighted signals into a TrustScore. The
// overall score is the weighted sum of the five sub-scores, clamped to
// [0,1]. LastUpdated is set to now.
func AggregateTrust(signals TrustSignals, weights TrustWeights, now time.Time) TrustScore {
	identity := signalOrNeutral(signals.Identity)
	device := signalOrNeutral(signals.Device)
	behavior := signalOrNeutral(signals.Behavior)
	network := signalOrNeutral(signals.Network)
	location := signalOrNeutral(signals.Location)

	overall := identity*weights.Identity +
		device*weights.Device +
		behavior*weights.Behavior +
		network*weights.Network +
		location*weights.Location

	return TrustScore{
		Overall:     clamp01(overall),
		Identity:    identity,
		Device:      device,
		Behavior:    behavior,
		Network:     network,
		Location:    location,
		LastUpdated: now,
	}
}

func signalOrNeutral(v *float64) float64 {
	if v == nil {
		return neutralSignal
	}
	return clamp01(*v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
