package mqtt

// bufferedMsg is a serialized publish waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds publishes made while the broker is unreachable. When full,
// the oldest message is overwritten. Not safe for concurrent use;
// RealPublisher holds its lock.
type outbox struct {
	slots   []bufferedMsg
	start   int
	count   int
	dropped int
}

func newOutbox(capacity int) *outbox {
	return &outbox{slots: make([]bufferedMsg, capacity)}
}

func (o *outbox) add(msg bufferedMsg) {
	end := (o.start + o.count) % len(o.slots)
	o.slots[end] = msg
	if o.count < len(o.slots) {
		o.count++
		return
	}
	o.start = (o.start + 1) % len(o.slots)
	o.dropped++
}

// take empties the outbox, returning its messages oldest first and how
// many were overwritten since the previous take.
func (o *outbox) take() ([]bufferedMsg, int) {
	dropped := o.dropped
	if o.count == 0 {
		o.dropped = 0
		return nil, dropped
	}
	msgs := make([]bufferedMsg, o.count)
	for i := range msgs {
		msgs[i] = o.slots[(o.start+i)%len(o.slots)]
		o.slots[(o.start+i)%len(o.slots)] = bufferedMsg{}
	}
	o.start, o.count, o.dropped = 0, 0, 0
	return msgs, dropped
}

func (o *outbox) len() int { return o.count }
