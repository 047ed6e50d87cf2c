package main

import (
	"context"
	"testing"
	"time"

	"creditchain/app/apptest"
	"creditchain/services/creditd/config"
)

func TestProduceBlocksAdvancesClock(t *testing.T) {
	h := apptest.New(t)
	start := h.App.Env()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- produceBlocks(ctx, h.App, 5*time.Millisecond, h.App.Logger()) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.App.Env().Height < start.Height+2 {
		if time.Now().After(deadline) {
			t.Fatalf("block height stuck at %d", h.App.Env().Height)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("produce blocks: %v", err)
	}
	if h.App.Env().Time <= start.Time {
		t.Fatalf("block time did not advance: %d", h.App.Env().Time)
	}
}

func TestRateLimitCopiesPolicy(t *testing.T) {
	got := rateLimit(config.RateLimit{RatePerSecond: 2, Burst: 3, Tokens: map[string]int{"POST /v1/execute": 2}})
	if got.RatePerSecond != 2 || got.Burst != 3 || got.Tokens["POST /v1/execute"] != 2 {
		t.Fatalf("unexpected policy: %+v", got)
	}
}
