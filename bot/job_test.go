package bot_test

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/replyt/bot"
	"github.com/onnwee/replyt/youtubeapi"
)

func TestStartAutoReplyJobRunsImmediately(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{comments: []youtubeapi.Comment{comment("c1", time.Now())}, canWrite: true, postOK: true}
	gen := &fakeGenerator{content: "hi"}
	svc := bot.New(testConfig(), store, src, gen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bot.StartAutoReplyJob(ctx, svc, time.Hour)

	deadline := time.After(2 * time.Second)
	for {
		if n, _ := store.CountProcessed(context.Background()); n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first cycle never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if n := gen.calls(); n != 1 {
		t.Fatalf("generator called %d times, want 1", n)
	}
}

func TestStartAutoReplyJobStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{canWrite: true, postOK: true}
	svc := bot.New(testConfig(), store, src, &fakeGenerator{})

	ctx, cancel := context.WithCancel(context.Background())
	bot.StartAutoReplyJob(ctx, svc, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	// After cancellation the service lock must be free for a manual cycle.
	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle after job stop: %v", err)
	}
}
