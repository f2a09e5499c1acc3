package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/rampart"
)

func testAccess(userID, deviceID string) *rampart.AccessContext {
	return &rampart.AccessContext{
		UserID:   userID,
		DeviceID: deviceID,
		Resource: "vault",
		Action:   "read",
		Trust:    rampart.TrustScore{Overall: 0.9},
	}
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	access := testAccess("u1", "dev_1")
	decision := &rampart.AccessDecision{Allowed: true, RiskLevel: rampart.RiskLow}

	// Miss
	_, ok := c.Get(ctx, "t1", access)
	if ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, "t1", access, decision)
	got, ok := c.Get(ctx, "t1", access)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Allowed {
		t.Fatal("expected allowed")
	}
}

func TestMemoryCacheScoreChangeMisses(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	access := testAccess("u1", "dev_1")
	c.Set(ctx, "t1", access, &rampart.AccessDecision{Allowed: true})

	// A refreshed trust score must not hit the old entry.
	refreshed := testAccess("u1", "dev_1")
	refreshed.Trust.Overall = 0.5
	if _, ok := c.Get(ctx, "t1", refreshed); ok {
		t.Fatal("expected miss for changed trust score")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	access := testAccess("u1", "dev_1")
	c.Set(ctx, "t1", access, &rampart.AccessDecision{Allowed: true})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "t1", access)
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidateTenant(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	c.Set(ctx, "t1", testAccess("u1", "dev_1"), &rampart.AccessDecision{Allowed: true})
	c.Set(ctx, "t2", testAccess("u1", "dev_1"), &rampart.AccessDecision{Allowed: true})

	c.InvalidateTenant(ctx, "t1")

	if _, ok := c.Get(ctx, "t1", testAccess("u1", "dev_1")); ok {
		t.Fatal("expected t1 invalidated")
	}
	if _, ok := c.Get(ctx, "t2", testAccess("u1", "dev_1")); !ok {
		t.Fatal("expected t2 untouched")
	}
}

func TestMemoryCacheInvalidateDevice(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	c.Set(ctx, "t1", testAccess("u1", "dev_1"), &rampart.AccessDecision{Allowed: true})
	c.Set(ctx, "t1", testAccess("u2", "dev_1"), &rampart.AccessDecision{Allowed: true})
	c.Set(ctx, "t1", testAccess("u1", "dev_2"), &rampart.AccessDecision{Allowed: true})

	c.InvalidateDevice(ctx, "t1", "dev_1")

	if _, ok := c.Get(ctx, "t1", testAccess("u1", "dev_1")); ok {
		t.Fatal("expected dev_1 entries invalidated")
	}
	if _, ok := c.Get(ctx, "t1", testAccess("u2", "dev_1")); ok {
		t.Fatal("expected dev_1 entries invalidated for all users")
	}
	if _, ok := c.Get(ctx, "t1", testAccess("u1", "dev_2")); !ok {
		t.Fatal("expected dev_2 untouched")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute), WithMaxSize(2))

	c.Set(ctx, "t1", testAccess("u1", "dev_1"), &rampart.AccessDecision{Allowed: true})
	c.Set(ctx, "t1", testAccess("u2", "dev_2"), &rampart.AccessDecision{Allowed: true})
	c.Set(ctx, "t1", testAccess("u3", "dev_3"), &rampart.AccessDecision{Allowed: true})

	if len(c.entries) > 2 {
		t.Fatalf("expected at most 2 entries, got %d", len(c.entries))
	}
}
