// Package ipc implements the messaging-channel abstraction of §6: an
// opaque handle plus a framed read primitive that strips the transport's
// own header before handing a message to the consumer (internal/ingress).
package ipc

import "io"

// FilterMessageHeaderSize is the size, in bytes, of the Windows minifilter
// framework's own FILTER_MESSAGE_HEADER that precedes every message
// delivered over a communication port — distinct from and in addition to
// the event.HeaderSize frame the payload itself carries.
const FilterMessageHeaderSize = 8

// Channel is a framed message source: each call to ReadMessage blocks
// until one message arrives and returns its payload with the transport's
// own header already stripped.
type Channel interface {
	ReadMessage() ([]byte, error)
	io.Closer
}

// messageBufferSize bounds one message read from the channel. Kernel
// events are small (a handful of fixed fields plus a couple of strings);
// 4 KiB matches the reference implementation's fixed receive buffer.
const messageBufferSize = 0x1000
