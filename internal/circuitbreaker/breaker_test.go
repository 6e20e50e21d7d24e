package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/testutil"
)

const host = "spatial.example.com"

var errUpstream = errors.New("upstream returned 503")

func newBreaker(threshold int) (*Breaker, *testutil.FakeClock) {
	c := testutil.NewFakeClock(time.Date(2020, 5, 6, 13, 0, 0, 0, time.UTC))
	return New(threshold, 5*time.Second).WithClock(c.Now), c
}

func trip(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.Record(host, errUpstream)
	}
}

func TestAllow_UnknownHost_Allowed(t *testing.T) {
	b, _ := newBreaker(3)
	if err := b.Allow(host); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if got := b.State(host); got != StateClosed {
		t.Fatalf("expected closed, got %s", got)
	}
}

func TestAllow_BelowThreshold_Allowed(t *testing.T) {
	b, _ := newBreaker(3)
	trip(b, 2)
	if err := b.Allow(host); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_AtThreshold_Open(t *testing.T) {
	b, _ := newBreaker(3)
	trip(b, 3)
	err := b.Allow(host)
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if got := b.State(host); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}
}

func TestAllow_AfterCooldown_SingleTrialCall(t *testing.T) {
	b, c := newBreaker(3)
	trip(b, 3)
	c.Advance(5 * time.Second)

	if err := b.Allow(host); err != nil {
		t.Fatalf("expected trial call to be allowed, got %v", err)
	}
	if err := b.Allow(host); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while trial call in flight, got %v", err)
	}
	if got := b.State(host); got != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", got)
	}
}

func TestRecord_SuccessfulTrialCallCloses(t *testing.T) {
	b, c := newBreaker(3)
	trip(b, 3)
	c.Advance(6 * time.Second)
	_ = b.Allow(host)
	b.Record(host, nil)

	if err := b.Allow(host); err != nil {
		t.Fatalf("expected nil after recovery, got %v", err)
	}
	trip(b, 2)
	if err := b.Allow(host); err != nil {
		t.Fatalf("failure count should restart after recovery, got %v", err)
	}
}

func TestRecord_FailedTrialCallReopens(t *testing.T) {
	b, c := newBreaker(3)
	trip(b, 3)
	c.Advance(6 * time.Second)
	_ = b.Allow(host)
	b.Record(host, errUpstream)

	if err := b.Allow(host); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after failed trial call, got %v", err)
	}
	c.Advance(4 * time.Second)
	if err := b.Allow(host); !errors.Is(err, ErrOpen) {
		t.Fatalf("cooldown restarts at the failed trial call, got %v", err)
	}
}

func TestRecord_SuccessOnUnknownHost_NoOp(t *testing.T) {
	b, _ := newBreaker(3)
	b.Record(host, nil)
	if got := b.State(host); got != StateClosed {
		t.Fatalf("expected closed, got %s", got)
	}
}

func TestIndependentHosts(t *testing.T) {
	b, _ := newBreaker(2)
	trip(b, 2)
	if err := b.Allow(host); err == nil {
		t.Fatal("expected tripped host to be open")
	}
	if err := b.Allow("asset.example.com"); err != nil {
		t.Fatalf("other host should be unaffected, got %v", err)
	}
}

func TestNew_ThresholdAtLeastOne(t *testing.T) {
	b, _ := newBreaker(0)
	b.Record(host, errUpstream)
	if err := b.Allow(host); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected a single failure to open, got %v", err)
	}
}
