package campaign

import (
	"context"
	"testing"
)

func TestCommitteeCache(t *testing.T) {
	member := mockSigner(t).Address()
	f := mockFakeLedger(2)
	f.committee[member] = true
	c := NewCommittee(f)
	ctx := context.Background()

	if authorized, err := c.IsAuthorized(ctx, member); err != nil || !authorized {
		t.Fatalf("Member not authorized (%v)", err)
	}
	f.mtx.Lock()
	f.committee[member] = false
	f.threshold = 3
	f.mtx.Unlock()
	if authorized, _ := c.IsAuthorized(ctx, member); !authorized {
		t.Errorf("Cached membership not used")
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if authorized, _ := c.IsAuthorized(ctx, member); authorized {
		t.Errorf("Refresh kept the old membership")
	}
	if threshold, _ := c.Threshold(ctx); threshold != 3 {
		t.Errorf("Refresh kept threshold %d", threshold)
	}
}

func TestCommitteeRefreshDuringRead(t *testing.T) {
	member := mockSigner(t).Address()
	f := mockFakeLedger(2)
	f.committee[member] = true
	g := &gatedReader{fakeLedger: f}
	c := NewCommittee(g)

	thresholdRead, releaseThreshold := make(chan struct{}), make(chan struct{})
	memberRead, releaseMember := make(chan struct{}), make(chan struct{})
	g.afterThreshold = func(ctx context.Context) {
		if tagOf(ctx) == "stale" {
			close(thresholdRead)
			<-releaseThreshold
		}
	}
	g.afterMember = func(ctx context.Context) {
		if tagOf(ctx) == "stale" {
			close(memberRead)
			<-releaseMember
		}
	}

	thresholdDone, memberDone := make(chan uint64, 1), make(chan bool, 1)
	go func() {
		threshold, _ := c.Threshold(tagged("stale"))
		thresholdDone <- threshold
	}()
	go func() {
		authorized, _ := c.IsAuthorized(tagged("stale"), member)
		memberDone <- authorized
	}()
	<-thresholdRead
	<-memberRead

	f.mtx.Lock()
	f.threshold = 3
	f.committee[member] = false
	f.mtx.Unlock()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	close(releaseThreshold)
	close(releaseMember)
	if threshold := <-thresholdDone; threshold != 2 {
		t.Errorf("In-flight read returned %d", threshold)
	}
	if authorized := <-memberDone; !authorized {
		t.Errorf("In-flight membership read changed")
	}

	if threshold, _ := c.Threshold(context.Background()); threshold != 3 {
		t.Errorf("In-flight read overwrote the threshold with %d", threshold)
	}
	if authorized, _ := c.IsAuthorized(context.Background(), member); authorized {
		t.Errorf("In-flight read restored the old membership")
	}
}
