package ingress

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/event"
	"github.com/sfi-go/sfi/internal/ipc"
	"github.com/sfi-go/sfi/internal/sigset"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func attrDigests(eventType string, attrs map[string]string) []digest.Digest {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]digest.Digest, len(keys))
	for i, k := range keys {
		out[i] = digest.AttributeString(eventType, k, attrs[k])
	}
	return out
}

type fakeCleaner struct {
	killed chan uint32
}

func (c *fakeCleaner) Terminate(pid uint32) bool {
	c.killed <- pid
	return true
}

func utf16leOf(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

func TestIngressTerminatesProcessOnRegistryMatch(t *testing.T) {
	keyName := `\REGISTRY\MACHINE\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
	valueName := "Updater"
	data := `C:\WINDOWS\system32\evil.exe`

	bs := sigset.NewBehavioralSet()
	attrs := attrDigests("RegSetValue", map[string]string{
		"key_name":   keyName,
		"value_name": valueName,
		"data":       data,
	})
	must(t, bs.AddSignature(0, "autorun write", attrs))
	set := &sigset.Set{Kind: sigset.KindBehavioral, Behavioral: bs}

	channel := ipc.NewLoopbackChannel(4)
	cleaner := &fakeCleaner{killed: make(chan uint32, 1)}
	loop := NewLoop(channel, set, cleaner)

	e := &event.RegistrySetValueEvent{
		Pid: 4242, Tid: 1,
		KeyName: keyName, ValueName: valueName,
		DataType: event.RegSZ, Data: utf16leOf(data),
	}
	channel.Send(event.Serialize(e))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.readLoop(ctx) }()

	select {
	case pid := <-cleaner.killed:
		if pid != 4242 {
			t.Fatalf("terminated wrong pid: got %d, want 4242", pid)
		}
	case <-time.After(time.Second):
		t.Fatalf("process was never terminated")
	}

	channel.Close()
	<-done
}

func TestIngressIgnoresNonMatchingEvent(t *testing.T) {
	bs := sigset.NewBehavioralSet()
	attrs := attrDigests("RegSetValue", map[string]string{"key_name": "unmatched"})
	must(t, bs.AddSignature(0, "unrelated", attrs))
	set := &sigset.Set{Kind: sigset.KindBehavioral, Behavioral: bs}

	channel := ipc.NewLoopbackChannel(4)
	cleaner := &fakeCleaner{killed: make(chan uint32, 1)}
	loop := NewLoop(channel, set, cleaner)

	e := &event.FileCreateEvent{Path: `C:\temp\benign.txt`}
	channel.Send(event.Serialize(e))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.readLoop(ctx) }()

	select {
	case pid := <-cleaner.killed:
		t.Fatalf("unexpected termination of pid %d", pid)
	case <-time.After(150 * time.Millisecond):
	}

	channel.Close()
	<-done
}

func TestDedupFIFOSuppressesRepeatedKey(t *testing.T) {
	d := newDedupFIFO(1000, 1000)
	if !d.Admit("a") {
		t.Fatalf("first sighting of a key must be admitted")
	}
	if d.Admit("a") {
		t.Fatalf("repeated key must not be re-admitted")
	}
	if !d.Admit("b") {
		t.Fatalf("distinct key must be admitted")
	}
}
