package mqtt

import (
	"bytes"
	"testing"
)

func addN(o *outbox, from, to int) {
	for i := from; i < to; i++ {
		o.add(bufferedMsg{topic: "datatracker/events", payload: []byte{byte(i)}})
	}
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestOutboxOrder(t *testing.T) {
	o := newOutbox(4)
	if msgs, dropped := o.take(); msgs != nil || dropped != 0 {
		t.Fatalf("empty take: %v %d", msgs, dropped)
	}

	addN(o, 0, 3)
	if o.len() != 3 {
		t.Errorf("len: got %d, want 3", o.len())
	}
	msgs, _ := o.take()
	if got := payloads(msgs); !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("take: got %v", got)
	}
	if o.len() != 0 {
		t.Error("outbox should be empty after take")
	}
}

func TestOutboxOverflowKeepsNewest(t *testing.T) {
	o := newOutbox(4)
	addN(o, 0, 7)

	msgs, dropped := o.take()
	if dropped != 3 {
		t.Errorf("dropped: got %d, want 3", dropped)
	}
	if got := payloads(msgs); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("take: got %v", got)
	}
	if _, dropped := o.take(); dropped != 0 {
		t.Error("take should reset the drop count")
	}
}

func TestOutboxWrapsAfterTake(t *testing.T) {
	o := newOutbox(3)
	addN(o, 0, 2)
	o.take()

	addN(o, 10, 14)
	msgs, dropped := o.take()
	if got := payloads(msgs); !bytes.Equal(got, []byte{11, 12, 13}) || dropped != 1 {
		t.Errorf("second cycle: got %v dropped=%d", got, dropped)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(2)
	o.add(bufferedMsg{topic: "datatracker/metrics", payload: []byte(`{}`), qos: 1, retained: true})

	msgs, _ := o.take()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.topic != "datatracker/metrics" || string(m.payload) != `{}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
