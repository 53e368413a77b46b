package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fgcaster/overlay/internal/match"
	"github.com/fgcaster/overlay/internal/store"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan Outbound, within time.Duration) Outbound {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return out
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return Outbound{} // unreachable
	}
}

func recvNoFrame(t *testing.T, ch <-chan Outbound, within time.Duration) {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further frames possible
			return
		}
		t.Fatalf("expected no frame within %v, but got: %+v", within, out)
	case <-time.After(within):
		// good: no frame
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func view(t *testing.T, h *Hub) View {
	t.Helper()
	reply := make(chan View, 1)
	h.Inbox() <- GetView{Reply: reply}
	return recvView(t, reply, 100*time.Millisecond)
}

type fakeCatalog map[string][]string

func (c fakeCatalog) HasTemplate(id string) bool {
	_, ok := c[id]
	return ok
}

func (c fakeCatalog) HasCharacter(templateID, characterID string) bool {
	for _, ch := range c[templateID] {
		if ch == characterID {
			return true
		}
	}
	return false
}

// kickRecorder stands in for the saver and remembers which versions the hub
// asked it to persist.
type kickRecorder struct {
	mu       sync.Mutex
	versions []int
}

func (r *kickRecorder) Kick(version int, _ match.State) {
	r.mu.Lock()
	r.versions = append(r.versions, version)
	r.mu.Unlock()
}

func (r *kickRecorder) recorded() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.versions...)
}

func newTestHub(t *testing.T, version int) (*Hub, *kickRecorder) {
	t.Helper()
	cat := fakeCatalog{match.DefaultTemplateID: {"Ryu", "Ken"}}
	st := store.New(store.Snapshot{Version: version, State: match.DefaultState()}, cat)
	rec := &kickRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return New(ctx, st, rec, zap.NewNop()), rec
}

func join(t *testing.T, h *Hub, id string, canMutate bool, buf int) chan Outbound {
	t.Helper()
	out := make(chan Outbound, buf)
	h.Inbox() <- Join{ID: id, CanMutate: canMutate, Outbox: out}
	return out
}

func TestHub_JoinReceivesSnapshotAtCurrentVersion(t *testing.T) {
	h, _ := newTestHub(t, 7)

	out := join(t, h, "c1", false, 2)

	first := recvFrame(t, out, 100*time.Millisecond)
	if first.Version != 7 {
		t.Fatalf("after join: want version=7, got %d", first.Version)
	}
	if first.State == nil || first.Delta != nil || first.Err != "" {
		t.Fatalf("after join: want a full snapshot frame, got %+v", first)
	}
	if first.State.ActiveTemplate != match.DefaultTemplateID {
		t.Fatalf("after join: want default template, got %q", first.State.ActiveTemplate)
	}
}

func TestHub_MutationBroadcastsDeltaToEveryClient(t *testing.T) {
	h, _ := newTestHub(t, 0)

	ctrl := join(t, h, "ctrl", true, 4)
	overlay := join(t, h, "overlay", false, 4)
	_ = recvFrame(t, ctrl, 100*time.Millisecond)    // join snapshot
	_ = recvFrame(t, overlay, 100*time.Millisecond) // join snapshot

	h.Inbox() <- FromClient{ID: "ctrl", Cmd: match.Command{
		Type: match.CmdSetPlayerScore, Side: 0, Score: 2,
	}}

	for _, out := range []chan Outbound{ctrl, overlay} {
		frame := recvFrame(t, out, 100*time.Millisecond)
		if frame.Version != 1 {
			t.Fatalf("after mutation: want version=1, got %d", frame.Version)
		}
		if frame.Delta == nil || frame.State != nil {
			t.Fatalf("one changed section should ship as a delta, got %+v", frame)
		}
		if frame.Delta.Player1 == nil || frame.Delta.Player1.Score != 2 {
			t.Fatalf("delta should carry player 1 with score 2, got %+v", frame.Delta)
		}
		if frame.Delta.Player2 != nil {
			t.Fatalf("untouched sections must stay out of the delta, got %+v", frame.Delta)
		}
	}
}

func TestHub_ReadOnlyClientCannotMutate(t *testing.T) {
	h, _ := newTestHub(t, 0)

	viewer := join(t, h, "viewer", false, 4)
	ctrl := join(t, h, "ctrl", true, 4)
	_ = recvFrame(t, viewer, 100*time.Millisecond)
	_ = recvFrame(t, ctrl, 100*time.Millisecond)

	h.Inbox() <- FromClient{ID: "viewer", Cmd: match.Command{
		Type: match.CmdSetPlayerScore, Side: 0, Score: 5,
	}}

	errFrame := recvFrame(t, viewer, 100*time.Millisecond)
	if errFrame.Err == "" {
		t.Fatalf("read-only mutation: want an error frame, got %+v", errFrame)
	}

	// Nobody else hears about it and the version stays put.
	recvNoFrame(t, ctrl, 100*time.Millisecond)
	if v := view(t, h); v.Version != 0 || v.State.Players[0].Score != 0 {
		t.Fatalf("read-only mutation must not change state: %+v", v)
	}
}

func TestHub_RejectedCommandAnswersSenderOnly(t *testing.T) {
	h, rec := newTestHub(t, 0)

	ctrl := join(t, h, "ctrl", true, 4)
	overlay := join(t, h, "overlay", false, 4)
	_ = recvFrame(t, ctrl, 100*time.Millisecond)
	_ = recvFrame(t, overlay, 100*time.Millisecond)

	h.Inbox() <- FromClient{ID: "ctrl", Cmd: match.Command{
		Type: match.CmdSetPlayerScore, Side: 5, Score: 1,
	}}

	errFrame := recvFrame(t, ctrl, 100*time.Millisecond)
	if errFrame.Err == "" || errFrame.State != nil || errFrame.Delta != nil {
		t.Fatalf("want a bare error frame, got %+v", errFrame)
	}

	recvNoFrame(t, overlay, 100*time.Millisecond)
	if v := view(t, h); v.Version != 0 {
		t.Fatalf("rejected command must not bump version, got %d", v.Version)
	}
	if got := rec.recorded(); len(got) != 0 {
		t.Fatalf("rejected command must not kick the saver, got %v", got)
	}
}

func TestHub_DropSlowClient(t *testing.T) {
	h, _ := newTestHub(t, 0)

	ctrl := join(t, h, "ctrl", true, 4)
	_ = recvFrame(t, ctrl, 100*time.Millisecond)

	// Buffer of one: the join snapshot fills it and is never drained.
	_ = join(t, h, "stuck", false, 1)

	h.Inbox() <- FromClient{ID: "ctrl", Cmd: match.Command{
		Type: match.CmdSetPlayerScore, Side: 0, Score: 1,
	}}
	_ = recvFrame(t, ctrl, 100*time.Millisecond)

	if v := view(t, h); v.NumClients != 1 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", v.NumClients)
	}
}

func TestHub_AcceptedMutationsKickSaverInOrder(t *testing.T) {
	h, rec := newTestHub(t, 0)

	ctrl := join(t, h, "ctrl", true, 8)
	_ = recvFrame(t, ctrl, 100*time.Millisecond)

	h.Inbox() <- FromClient{ID: "ctrl", Cmd: match.Command{
		Type: match.CmdSetPlayerField, Side: 0, Field: match.FieldName, Value: "Daigo",
	}}
	h.Inbox() <- FromClient{ID: "ctrl", Cmd: match.Command{
		Type: match.CmdSetPlayerScore, Side: 5, Score: 1, // rejected
	}}
	h.Inbox() <- FromClient{ID: "ctrl", Cmd: match.Command{
		Type: match.CmdSetPlayerScore, Side: 1, Score: 3,
	}}

	// Drain: delta, error, delta.
	for i := 0; i < 3; i++ {
		_ = recvFrame(t, ctrl, 100*time.Millisecond)
	}

	got := rec.recorded()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("saver should see versions [1 2], got %v", got)
	}
}

func TestHub_TwoControllersSeeTheSameOrder(t *testing.T) {
	h, _ := newTestHub(t, 0)

	c1 := join(t, h, "c1", true, 8)
	c2 := join(t, h, "c2", true, 8)
	_ = recvFrame(t, c1, 100*time.Millisecond)
	_ = recvFrame(t, c2, 100*time.Millisecond)

	h.Inbox() <- FromClient{ID: "c1", Cmd: match.Command{
		Type: match.CmdSetPlayerField, Side: 0, Field: match.FieldName, Value: "Daigo",
	}}
	h.Inbox() <- FromClient{ID: "c2", Cmd: match.Command{
		Type: match.CmdSetPlayerField, Side: 1, Field: match.FieldName, Value: "Tokido",
	}}

	for _, out := range []chan Outbound{c1, c2} {
		first := recvFrame(t, out, 100*time.Millisecond)
		second := recvFrame(t, out, 100*time.Millisecond)
		if first.Version != 1 || second.Version != 2 {
			t.Fatalf("want versions 1 then 2, got %d then %d", first.Version, second.Version)
		}
	}

	v := view(t, h)
	if v.State.Players[0].Name != "Daigo" || v.State.Players[1].Name != "Tokido" {
		t.Fatalf("both edits should land, got %+v", v.State.Players)
	}
}

func TestHub_LeaveClosesOutbox(t *testing.T) {
	h, _ := newTestHub(t, 0)

	out := join(t, h, "c1", false, 2)
	_ = recvFrame(t, out, 100*time.Millisecond)

	h.Inbox() <- Leave{ID: "c1"}

	if v := view(t, h); v.NumClients != 0 {
		t.Fatalf("client still registered after leave: NumClients=%d", v.NumClients)
	}

	// The writer goroutine ranges over the outbox; a leave that does not
	// close it would strand one goroutine per disconnect.
	select {
	case frame, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox after leave, got frame %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox not closed after leave")
	}
}

func TestHub_JoinNeverBlocksOnFullOutbox(t *testing.T) {
	h, _ := newTestHub(t, 0)

	// An unbuffered outbox with no reader cannot take the join snapshot;
	// the joiner is evicted instead of wedging the loop.
	out := make(chan Outbound)
	h.Inbox() <- Join{ID: "stuck", CanMutate: false, Outbox: out}

	if v := view(t, h); v.NumClients != 0 {
		t.Fatalf("undeliverable joiner should be evicted, NumClients=%d", v.NumClients)
	}

	select {
	case frame, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox, got frame %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox not closed after join eviction")
	}
}

func TestHub_ShutdownClosesOutboxes(t *testing.T) {
	h, _ := newTestHub(t, 0)

	out := join(t, h, "c1", false, 2)
	_ = recvFrame(t, out, 100*time.Millisecond)

	h.Inbox() <- Shutdown{}

	select {
	case frame, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox after shutdown, got frame %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox not closed after shutdown")
	}
}
