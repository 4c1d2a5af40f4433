package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arkind/identity-api/internal/core/domain"
)

type recordingAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	done   chan struct{}
	want   int
}

func newRecordingAuditRepo(want int) *recordingAuditRepo {
	return &recordingAuditRepo{done: make(chan struct{}), want: want}
}

func (r *recordingAuditRepo) Insert(_ context.Context, event *domain.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	if len(r.events) == r.want {
		close(r.done)
	}
	return nil
}

func (r *recordingAuditRepo) snapshot() []domain.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuthEvent, len(r.events))
	copy(out, r.events)
	return out
}

func TestDispatcher_PersistsEventsInOrder(t *testing.T) {
	repo := newRecordingAuditRepo(3)
	d := NewDispatcher(2, repo, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	actions := []domain.AuthAction{domain.ActionRegister, domain.ActionLogin, domain.ActionLogout}
	for _, action := range actions {
		d.Enqueue(domain.AuthEvent{AccountID: "acc-1", Action: action, At: time.Now()})
	}

	select {
	case <-repo.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit inserts")
	}

	events := repo.snapshot()
	for i, action := range actions {
		if events[i].Action != action {
			t.Errorf("event %d action = %q, want %q", i, events[i].Action, action)
		}
	}
}

func TestDispatcher_ShardsByAccount(t *testing.T) {
	d := NewDispatcher(4, newRecordingAuditRepo(0), zerolog.Nop())

	first := d.shardIndex("acc-42")
	for i := 0; i < 10; i++ {
		if got := d.shardIndex("acc-42"); got != first {
			t.Fatalf("shardIndex not deterministic: %d then %d", first, got)
		}
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	// No workers running: the buffer fills and the overflow is dropped.
	d := NewDispatcher(1, newRecordingAuditRepo(0), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer+10; i++ {
			d.Enqueue(domain.AuthEvent{AccountID: "acc-1", Action: domain.ActionLogin})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full buffer")
	}
}
