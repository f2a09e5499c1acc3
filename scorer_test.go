package rampart

import (
	"math"
	"testing"
	"time"
)

func TestAggregateTrustWeightedSum(t *testing.T) {
	w := DefaultConfig().Weights
	now := time.Now().UTC()

	score := AggregateTrust(TrustSignals{
		Identity: Score(1),
		Device:   Score(0.8),
		Behavior: Score(0.6),
		Network:  Score(0.4),
		Location: Score(0.2),
	}, w, now)

	want := 1*w.Identity + 0.8*w.Device + 0.6*w.Behavior + 0.4*w.Network + 0.2*w.Location
	if math.Abs(score.Overall-want) > 1e-9 {
		t.Fatalf("expected overall %v, got %v", want, score.Overall)
	}
	if !score.LastUpdated.Equal(now) {
		t.Fatal("expected LastUpdated set to aggregation time")
	}
}

func TestAggregateTrustMissingSignalsNeutral(t *testing.T) {
	w := DefaultConfig().Weights
	now := time.Now().UTC()

	// All signals missing: every sub-score is the neutral 0.5 and so
	// is the overall (weights sum to 1).
	score := AggregateTrust(TrustSignals{}, w, now)
	if math.Abs(score.Overall-0.5) > 1e-9 {
		t.Fatalf("expected neutral overall 0.5, got %v", score.Overall)
	}
	if score.Device != 0.5 || score.Location != 0.5 {
		t.Fatal("expected missing sub-scores defaulted to 0.5")
	}

	// Partial information degrades, never fails.
	score = AggregateTrust(TrustSignals{Identity: Score(1)}, w, now)
	if score.Overall <= 0.5 || score.Overall >= 1 {
		t.Fatalf("expected partial signals between neutral and full, got %v", score.Overall)
	}
}

func TestAggregateTrustClamped(t *testing.T) {
	w := DefaultConfig().Weights
	now := time.Now().UTC()

	score := AggregateTrust(TrustSignals{
		Identity: Score(7),
		Device:   Score(-3),
	}, w, now)
	if score.Identity != 1 || score.Device != 0 {
		t.Fatalf("expected sub-scores clamped to [0,1], got %v %v", score.Identity, score.Device)
	}
	if score.Overall < 0 || score.Overall > 1 {
		t.Fatalf("expected overall in [0,1], got %v", score.Overall)
	}
}
