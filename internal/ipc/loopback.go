package ipc

import "fmt"

// LoopbackChannel is an in-process Channel backed by a buffered Go
// channel of already-framed (header-stripped) payloads. It has no
// teacher-corpus analogue of its own — it exists purely so the ingress
// loop can be exercised in tests on any platform, without a real
// minifilter connection.
type LoopbackChannel struct {
	messages chan []byte
	closed   chan struct{}
}

// NewLoopbackChannel returns a LoopbackChannel buffering up to depth
// pending messages.
func NewLoopbackChannel(depth int) *LoopbackChannel {
	return &LoopbackChannel{
		messages: make(chan []byte, depth),
		closed:   make(chan struct{}),
	}
}

// Send enqueues a payload for a future ReadMessage call.
func (c *LoopbackChannel) Send(payload []byte) {
	select {
	case c.messages <- payload:
	case <-c.closed:
	}
}

func (c *LoopbackChannel) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.messages:
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("ipc: loopback channel closed")
	}
}

func (c *LoopbackChannel) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
