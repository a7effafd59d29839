//go:build windows

package ipc

import (
	"fmt"
	"sync"
	"unicode/utf16"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	loadOnce sync.Once
	loadErr  error

	fltlib                             uintptr
	procFilterConnectCommunicationPort func(portName uintptr, options uint32, context uintptr, sizeOfContext uint32, securityAttributes uintptr, port *uintptr) int32
	procFilterGetMessage               func(port uintptr, messageBuffer uintptr, messageBufferSize uint32, overlapped uintptr) int32
	procFilterClose                    func(port uintptr) int32
)

// loadFltlib binds the three fltlib.dll entry points the minifilter
// communication-port protocol needs, without cgo, using purego's
// Dlopen + RegisterLibFunc pattern for binding OS libraries directly.
func loadFltlib() error {
	loadOnce.Do(func() {
		var err error
		fltlib, err = purego.Dlopen("fltlib.dll", purego.RTLD_LAZY)
		if err != nil {
			loadErr = fmt.Errorf("ipc: load fltlib.dll: %w", err)
			return
		}

		purego.RegisterLibFunc(&procFilterConnectCommunicationPort, fltlib, "FilterConnectCommunicationPort")
		purego.RegisterLibFunc(&procFilterGetMessage, fltlib, "FilterGetMessage")
		purego.RegisterLibFunc(&procFilterClose, fltlib, "FilterClose")
	})
	return loadErr
}

// minifilterChannel implements Channel over a minifilter communication
// port opened with FilterConnectCommunicationPort, polled with
// FilterGetMessage.
type minifilterChannel struct {
	port uintptr
}

// OpenMinifilterChannel connects to the named minifilter communication
// port (e.g. `\BEDET.KM2UM.Port`), matching the original's
// FilterConnectCommunicationPort call.
func OpenMinifilterChannel(portName string) (Channel, error) {
	if err := loadFltlib(); err != nil {
		return nil, err
	}

	utf16Name := utf16.Encode([]rune(portName + "\x00"))
	var port uintptr
	status := procFilterConnectCommunicationPort(
		uintptr(unsafe.Pointer(&utf16Name[0])),
		0, 0, 0, 0,
		&port,
	)
	if status != 0 {
		return nil, fmt.Errorf("ipc: FilterConnectCommunicationPort %q failed: status 0x%08x", portName, status)
	}

	return &minifilterChannel{port: port}, nil
}

// ReadMessage blocks on FilterGetMessage and returns the payload with the
// FILTER_MESSAGE_HEADER prefix stripped.
func (c *minifilterChannel) ReadMessage() ([]byte, error) {
	buf := make([]byte, messageBufferSize)
	status := procFilterGetMessage(c.port, uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 0)
	if status != 0 {
		return nil, fmt.Errorf("ipc: FilterGetMessage failed: status 0x%08x", status)
	}
	if len(buf) < FilterMessageHeaderSize {
		return nil, fmt.Errorf("ipc: message shorter than filter header")
	}
	return buf[FilterMessageHeaderSize:], nil
}

func (c *minifilterChannel) Close() error {
	status := procFilterClose(c.port)
	if status != 0 {
		return fmt.Errorf("ipc: FilterClose failed: status 0x%08x", status)
	}
	return nil
}
