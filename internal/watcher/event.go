package watcher

import (
	"fmt"
	"time"

	"github.com/lc/confwatch/internal/appconfig"
)

// EventKind names the outcome of one load attempt or tick.
type EventKind int

// Event kinds. Unchanged ticks produce no event.
const (
	EventLoaded EventKind = iota + 1
	EventInitialLoadFailed
	EventUpdated
	EventContentUnchanged
	EventReloadFailed
	EventCheckError
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventInitialLoadFailed:
		return "initial_load_failed"
	case EventUpdated:
		return "updated"
	case EventContentUnchanged:
		return "content_unchanged"
	case EventReloadFailed:
		return "reload_failed"
	case EventCheckError:
		return "check_error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Failed reports whether the event carries an error.
func (k EventKind) Failed() bool {
	return k == EventInitialLoadFailed || k == EventReloadFailed || k == EventCheckError
}

// Event is one observation emitted by the watch loop.
type Event struct {
	// Seq increases by one per event, starting at 1.
	Seq  uint64
	Kind EventKind
	Path string
	At   time.Time

	// Modified and Digest describe the file content behind Config.
	Modified time.Time
	Digest   uint64

	// Config is set for loaded, updated and content-unchanged events.
	Config *appconfig.Config
	// Previous is the config Config replaced, nil on first success.
	Previous *appconfig.Config

	Err error
}

// Observer receives events on the watch loop goroutine, in order.
// Implementations must not block for long: the next tick waits.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

type multiObserver []Observer

func (m multiObserver) Observe(ev Event) {
	for _, o := range m {
		o.Observe(ev)
	}
}

// Observers fans events out to each non-nil observer in argument order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

var nopObserver = ObserverFunc(func(Event) {})
