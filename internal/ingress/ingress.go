// Package ingress implements the detection message loop of §6:
// start-detection connects to the kernel producer's communication
// channel, decodes each framed behavioral event, evaluates it against a
// KindBehavioral signature set, and terminates the offending process on
// a confirmed match — all while a foreground key poll watches for the
// operator's quit request.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/sfi-go/sfi/internal/event"
	"github.com/sfi-go/sfi/internal/ipc"
	"github.com/sfi-go/sfi/internal/scan"
	"github.com/sfi-go/sfi/internal/sigset"
)

// notifyRate and notifyBurst bound how many distinct detections the loop
// will surface per second before the dedup FIFO starts throttling —
// guarding against a single runaway process flooding the console.
const (
	notifyRate = 5.0
	notifyBurst = 10
)

// Loop is the running detection session: one channel, one behavioral
// set, one process cleaner.
type Loop struct {
	Channel ipc.Channel
	Set     *sigset.Set
	Cleaner scan.ProcessCleaner

	dedup *dedupFIFO
}

// NewLoop returns a Loop ready to Run. set must be a KindBehavioral set.
func NewLoop(channel ipc.Channel, set *sigset.Set, cleaner scan.ProcessCleaner) *Loop {
	return &Loop{
		Channel: channel,
		Set:     set,
		Cleaner: cleaner,
		dedup:   newDedupFIFO(notifyRate, notifyBurst),
	}
}

// Run drives the message loop until the operator quits (pressing 'q' on
// a foreground terminal) or ctx is cancelled, whichever comes first. If
// stdin is not a terminal the foreground watcher is skipped and Run only
// returns on ctx cancellation or a channel error.
func (l *Loop) Run(ctx context.Context, stdinFD int) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return l.readLoop(ctx)
	})

	if term.IsTerminal(stdinFD) {
		group.Go(func() error {
			return watchForQuit(ctx, stdinFD)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// readLoop is the background task: block on the channel, decode, evaluate,
// act. It mirrors the original's message_loop, minus the kernel-mode
// framing details that only make sense inside the minifilter itself.
func (l *Loop) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		buf, err := l.Channel.ReadMessage()
		if err != nil {
			return fmt.Errorf("ingress: read message: %w", err)
		}

		e, err := decode(buf)
		if err != nil {
			slog.Warn("ingress: dropping unparseable event", "error", err)
			continue
		}

		l.handle(e)
	}
}

// handle evaluates one decoded event and, on a confirmed match, dedupes,
// reports, and kills the owning process if one is known.
func (l *Loop) handle(e event.Event) {
	rep, matched := l.Set.EvalEvent(e)
	if !matched {
		return
	}

	key := e.Name() + ":" + rep.Cause
	if !l.dedup.Admit(key) {
		return
	}

	slog.Warn("behavioral match", "event", e.Name(), "desc", rep.Desc, "cause", rep.Cause)

	pid, ok := pidOf(e)
	if !ok {
		return
	}
	if l.Cleaner == nil {
		return
	}
	if l.Cleaner.Terminate(pid) {
		slog.Info("terminated offending process", "pid", pid)
	} else {
		slog.Warn("failed to terminate offending process", "pid", pid)
	}
}

// pidOf extracts the owning process id from variants that carry one.
// FileCreateEvent carries none, so a file-create match is reported but
// terminates nothing.
func pidOf(e event.Event) (uint32, bool) {
	switch v := e.(type) {
	case *event.ProcessCreateEvent:
		return v.Pid, true
	case *event.ImageLoadEvent:
		return v.Pid, true
	case *event.RegistrySetValueEvent:
		return v.Pid, true
	default:
		return 0, false
	}
}

// decode dispatches a framed buffer to its variant's decoder by class tag.
func decode(buf []byte) (event.Event, error) {
	class, err := event.GetEventType(buf)
	if err != nil {
		return nil, fmt.Errorf("decode event class: %w", err)
	}

	switch class {
	case event.ClassProcessCreate:
		return event.DecodeProcessCreateEvent(buf)
	case event.ClassImageLoad:
		return event.DecodeImageLoadEvent(buf)
	case event.ClassRegistrySetValue:
		return event.DecodeRegistrySetValueEvent(buf)
	case event.ClassFileCreate:
		return event.DecodeFileCreateEvent(buf)
	default:
		return nil, fmt.Errorf("unknown event class %#x", class)
	}
}

// watchForQuit polls stdin in raw mode for a 'q' keypress, matching the
// original's Term::buffered_stdout().read_char() foreground loop.
func watchForQuit(ctx context.Context, fd int) error {
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("ingress: enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := readStdin(buf)
		if err != nil {
			return fmt.Errorf("ingress: read stdin: %w", err)
		}
		if n > 0 && (buf[0] == 'q' || buf[0] == 'Q') {
			return errQuit
		}
	}
}
