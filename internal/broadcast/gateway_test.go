package broadcast

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/lox/nothanks/internal/monitor"
)

func testGateway() *Gateway {
	return NewGateway(log.New(io.Discard), monitor.NullMonitor{})
}

func collectSink(events *[]Event) Sink {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestPublishReachesListeners(t *testing.T) {
	g := testGateway()

	var got []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&got)}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := g.PublishStateDelta("s1", map[string]string{"phase": "running"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("received %d events, want 1", len(got))
	}
	if got[0].Type != TypeStateDelta {
		t.Errorf("type = %s, want %s", got[0].Type, TypeStateDelta)
	}
	if got[0].ID == "" {
		t.Error("published event must carry an id")
	}

	// Other sessions never see the event.
	var other []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s2", Sink: collectSink(&other)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := g.PublishStateDelta("s1", map[string]string{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("listener on s2 received %d events from s1", len(other))
	}
}

func TestConnectReplaysHistory(t *testing.T) {
	g := testGateway()

	for i := 0; i < 3; i++ {
		if err := g.PublishStateDelta("s1", map[string]int{"seq": i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	var got []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&got)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("replayed %d events, want 3", len(got))
	}

	// Replay from a known cursor delivers only what followed it.
	var after []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", CursorID: got[1].ID, Sink: collectSink(&after)}); err != nil {
		t.Fatalf("connect with cursor: %v", err)
	}
	if len(after) != 1 || after[0].ID != got[2].ID {
		t.Errorf("cursor replay = %d events, want only the last one", len(after))
	}

	// An unknown cursor falls back to the full buffer.
	var unknown []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", CursorID: "no-such-id", Sink: collectSink(&unknown)}); err != nil {
		t.Fatalf("connect with unknown cursor: %v", err)
	}
	if len(unknown) != 3 {
		t.Errorf("unknown cursor replayed %d events, want 3", len(unknown))
	}
}

func TestHistoryEviction(t *testing.T) {
	g := testGateway()

	total := HistoryCapacity + 10
	for i := 0; i < total; i++ {
		if err := g.PublishStateDelta("s1", map[string]int{"seq": i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	var got []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&got)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(got) != HistoryCapacity {
		t.Errorf("replayed %d events, want the %d most recent", len(got), HistoryCapacity)
	}
	// The oldest surviving event is the first one after eviction.
	var payload struct {
		Seq int `json:"seq"`
	}
	if err := json.Unmarshal(got[0].Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Seq != total-HistoryCapacity {
		t.Errorf("oldest surviving seq = %d, want %d", payload.Seq, total-HistoryCapacity)
	}
}

func TestEventLogBypassesHistory(t *testing.T) {
	g := testGateway()

	var live []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&live)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := g.PublishEventLog("s1", map[string]string{"id": "turn-1-log-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(live) != 1 || live[0].Type != TypeEventLog {
		t.Fatalf("live listener should receive the log event, got %v", live)
	}

	// A later connection must not see it replayed.
	var replay []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&replay)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(replay) != 0 {
		t.Errorf("event.log was replayed from history: %v", replay)
	}
}

func TestFailingSinkIsDropped(t *testing.T) {
	g := testGateway()

	calls := 0
	_, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: func(Event) error {
		calls++
		return errors.New("connection gone")
	}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := g.PublishStateDelta("s1", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := g.PublishStateDelta("s1", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 1 {
		t.Errorf("failing sink called %d times, want 1", calls)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	g := testGateway()

	var got []Event
	sub, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&got)})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sub.Disconnect()
	sub.Disconnect()

	if err := g.PublishStateDelta("s1", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("disconnected listener received %d events", len(got))
	}
}

func TestRemoveSessionDropsHistory(t *testing.T) {
	g := testGateway()

	if err := g.PublishStateDelta("s1", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	g.RemoveSession("s1")

	var got []Event
	if _, err := g.Connect(ConnectOptions{SessionID: "s1", Sink: collectSink(&got)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("removed session replayed %d events", len(got))
	}
}

func TestConnectRejectsNilSink(t *testing.T) {
	g := testGateway()
	if _, err := g.Connect(ConnectOptions{SessionID: "s1"}); err == nil {
		t.Error("expected an error for a nil sink")
	}
}

func TestUnmarshalablePayload(t *testing.T) {
	g := testGateway()
	if err := g.PublishStateDelta("s1", func() {}); err == nil {
		t.Error("expected a marshal error for an unserializable payload")
	}
}
