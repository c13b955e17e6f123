package offline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	queue, err := OpenQueue(filepath.Join(t.TempDir(), "queue.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { queue.Close() })
	return queue
}

func TestEnqueueRejectsUnlistedActions(t *testing.T) {
	queue := newTestQueue(t)

	if _, err := queue.Enqueue(context.Background(), "auth.login", "POST", "/auth/login", nil); err == nil {
		t.Fatal("login must never be queued")
	}
	if _, err := queue.Enqueue(context.Background(), "ticket.list", "GET", "/api/tickets", nil); err == nil {
		t.Fatal("read-only actions must never be queued")
	}
	if _, err := queue.Enqueue(context.Background(), ActionTicketCreate, "POST", "/api/tickets", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
}

func TestPendingPreservesEnqueueOrder(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	for _, target := range []string{"/a", "/b", "/c"} {
		if _, err := queue.Enqueue(ctx, ActionTicketTransition, "POST", target, []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
	pending, err := queue.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	for i, want := range []string{"/a", "/b", "/c"} {
		if pending[i].Target != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, pending[i].Target)
		}
	}
}

func TestPurgeSyncedKeepsQueued(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	first, err := queue.Enqueue(ctx, ActionTicketCreate, "POST", "/api/tickets", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := queue.Enqueue(ctx, ActionChatSend, "POST", "/api/chat", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	if err := queue.MarkSynced(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	purged, err := queue.PurgeSynced(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
	pending, _ := queue.Pending(ctx)
	if len(pending) != 1 || pending[0].Action != ActionChatSend {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()
	queue.Now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }

	if _, _, ok, err := queue.LoadSnapshot(ctx, SnapshotOpenTickets); err != nil || ok {
		t.Fatalf("missing snapshot must report ok=false, got ok=%v err=%v", ok, err)
	}

	payload := []byte(`[{"id":"t1","state":"open"}]`)
	if err := queue.SaveSnapshot(ctx, SnapshotOpenTickets, payload); err != nil {
		t.Fatal(err)
	}
	got, updatedAt, ok, err := queue.LoadSnapshot(ctx, SnapshotOpenTickets)
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %s", got)
	}
	if updatedAt.IsZero() {
		t.Fatal("updated_at not stamped")
	}

	// Overwrite replaces, it does not append.
	if err := queue.SaveSnapshot(ctx, SnapshotOpenTickets, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	got, _, _, _ = queue.LoadSnapshot(ctx, SnapshotOpenTickets)
	if !bytes.Equal(got, []byte(`[]`)) {
		t.Fatalf("snapshot not replaced: %s", got)
	}
}

// scriptedDoer fails targets listed in failures once, succeeding afterwards.
type scriptedDoer struct {
	calls    []string
	failures map[string]int
	statuses map[string]int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	target := req.URL.Path
	d.calls = append(d.calls, target)
	if d.failures[target] > 0 {
		d.failures[target]--
		return nil, errors.New("connection refused")
	}
	status := http.StatusOK
	if s, ok := d.statuses[target]; ok {
		status = s
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func TestReplayStopsOnNetworkFailureAndPreservesOrder(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()
	for _, target := range []string{"/a", "/b", "/c"} {
		if _, err := queue.Enqueue(ctx, ActionTicketTransition, "POST", target, []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
	doer := &scriptedDoer{failures: map[string]int{"/b": 1}}
	replayer := NewReplayer(queue, doer, "http://server", "tok", zap.NewNop())

	res, err := replayer.Replay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced != 1 || res.Remaining != 2 {
		t.Fatalf("first pass: expected 1 synced 2 remaining, got %+v", res)
	}

	res, err = replayer.Replay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced != 2 || res.Remaining != 0 {
		t.Fatalf("second pass: expected 2 synced, got %+v", res)
	}
	// Second pass must go B then C, never C before B.
	want := []string{"/a", "/b", "/b", "/c"}
	if len(doer.calls) != len(want) {
		t.Fatalf("unexpected call sequence %v", doer.calls)
	}
	for i := range want {
		if doer.calls[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], doer.calls[i])
		}
	}
}

func TestReplayTreatsServerRejectionAsDelivered(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()
	if _, err := queue.Enqueue(ctx, ActionTicketTransition, "POST", "/a", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	doer := &scriptedDoer{statuses: map[string]int{"/a": http.StatusConflict}}
	replayer := NewReplayer(queue, doer, "http://server", "", zap.NewNop())

	res, err := replayer.Replay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced != 1 || res.Remaining != 0 {
		t.Fatalf("a 409 retires the command, got %+v", res)
	}
	pending, _ := queue.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("queue should be empty, got %+v", pending)
	}
}
