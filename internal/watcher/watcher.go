// Package watcher keeps a validated, in-memory copy of one configuration file
// current by polling its modification time on a fixed interval.
//
// All state changes happen on the goroutine running Watch. A failed reload
// never replaces the last valid configuration; it is reported as an Event and
// retried on the next tick. Current and Status read atomically published
// snapshots and are safe to call from other goroutines.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/filesys"
	"github.com/lc/confwatch/internal/log"
)

// State is the coarse lifecycle position of a Watcher.
type State int32

// Watcher states.
const (
	StateUninitialized State = iota
	StateAwaitingFirstValid
	StateHasValidConfig
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingFirstValid:
		return "awaiting_first_valid"
	case StateHasValidConfig:
		return "has_valid_config"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Watcher polls a single configuration file and holds its last valid value.
type Watcher struct {
	path     string
	interval time.Duration
	fs       filesys.ReadFS
	loader   appconfig.Loader
	obs      Observer
	runID    string
	started  time.Time

	// Written only by the Watch goroutine.
	lastModified atomic.Time
	current      atomic.Pointer[appconfig.Config]
	digest       atomic.Uint64
	state        atomic.Int32
	lastErr      atomic.Error
	seq          atomic.Uint64

	checks   atomic.Int64
	loads    atomic.Int64
	failures atomic.Int64
}

// Opt configures a Watcher.
type Opt func(w *Watcher)

// WithFS replaces the OS filesystem.
func WithFS(fsys filesys.ReadFS) Opt {
	return func(w *Watcher) {
		w.fs = fsys
	}
}

// WithLoader replaces the loader chosen from the file extension.
func WithLoader(l appconfig.Loader) Opt {
	return func(w *Watcher) {
		w.loader = l
	}
}

// WithObserver sets the receiver of watch events.
func WithObserver(o Observer) Opt {
	return func(w *Watcher) {
		w.obs = o
	}
}

// New creates a Watcher for path. It does not touch the filesystem.
// interval must be positive; callers validate its upper bound.
func New(path string, interval time.Duration, opts ...Opt) *Watcher {
	w := &Watcher{
		path:     path,
		interval: interval,
		fs:       filesys.OS(),
		loader:   appconfig.ForPath(path),
		obs:      nopObserver,
		runID:    uuid.NewString(),
		started:  time.Now(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Path returns the watched path.
func (w *Watcher) Path() string { return w.path }

// Interval returns the poll interval.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Current returns the last valid configuration, if any has been loaded.
func (w *Watcher) Current() (*appconfig.Config, bool) {
	cfg := w.current.Load()
	return cfg, cfg != nil
}

// Status is a point-in-time view of a Watcher.
type Status struct {
	RunID        string
	Path         string
	Interval     time.Duration
	State        State
	StartedAt    time.Time
	LastModified time.Time
	Digest       uint64
	LastError    error
	Checks       int64
	Loads        int64
	Failures     int64
}

// Status returns the current status. Fields are read individually and may
// straddle a concurrent tick.
func (w *Watcher) Status() Status {
	return Status{
		RunID:        w.runID,
		Path:         w.path,
		Interval:     w.interval,
		State:        State(w.state.Load()),
		StartedAt:    w.started,
		LastModified: w.lastModified.Load(),
		Digest:       w.digest.Load(),
		LastError:    w.lastErr.Load(),
		Checks:       w.checks.Load(),
		Loads:        w.loads.Load(),
		Failures:     w.failures.Load(),
	}
}

// Watch performs the initial load and then checks the file every interval
// until ctx is cancelled, in which case it returns nil. Failures to stat,
// read, parse or validate the file are reported to the observer and never
// end the loop. Only an error wrapping ErrUnclassified is returned.
func (w *Watcher) Watch(ctx context.Context) error {
	log.Info("watcher: starting", "path", w.path, "interval", w.interval.String(), "run_id", w.runID)
	defer log.Info("watcher: stopped", "path", w.path)

	if err := w.initialLoad(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Check runs the load pipeline once and returns the result without
// publishing it or emitting an event. It is safe to call on a Watcher that is
// not watching.
func (w *Watcher) Check(ctx context.Context) (*appconfig.Config, uint64, error) {
	snap, err := w.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	return snap.cfg, snap.digest, nil
}

// initialLoad runs the pipeline once without change detection.
func (w *Watcher) initialLoad(ctx context.Context) error {
	snap, err := w.load(ctx)
	if err != nil {
		if errors.Is(err, ErrUnclassified) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		w.state.Store(int32(StateAwaitingFirstValid))
		w.fail(EventInitialLoadFailed, err)
		return nil
	}

	w.commit(snap)
	w.emit(Event{
		Kind:     EventLoaded,
		Modified: snap.modified,
		Digest:   snap.digest,
		Config:   snap.cfg,
	})
	return nil
}

// tick is one poll: detect a change, reload on change, report the outcome.
func (w *Watcher) tick(ctx context.Context) error {
	w.checks.Inc()

	info, err := w.stat()
	if err != nil {
		w.fail(EventCheckError, err)
		return nil
	}

	mod := info.ModTime()
	if !w.changed(mod) {
		log.Debug("watcher: unchanged", "path", w.path, "modified", mod)
		return nil
	}
	log.Debug("watcher: change detected", "path", w.path, "modified", mod)

	snap, err := w.load(ctx)
	if err != nil {
		if errors.Is(err, ErrUnclassified) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		w.fail(EventReloadFailed, err)
		return nil
	}
	if snap.modified.Before(mod) {
		snap.modified = mod
	}

	prev := w.current.Load()
	w.commit(snap)

	kind := EventUpdated
	if prev.Equal(snap.cfg) {
		kind = EventContentUnchanged
	}
	w.emit(Event{
		Kind:     kind,
		Modified: snap.modified,
		Digest:   snap.digest,
		Config:   snap.cfg,
		Previous: prev,
	})
	return nil
}

// changed reports whether mod is newer than the last successful load.
// Equal or older timestamps count as unchanged.
func (w *Watcher) changed(mod time.Time) bool {
	last := w.lastModified.Load()
	return last.IsZero() || mod.After(last)
}

type snapshot struct {
	cfg      *appconfig.Config
	modified time.Time
	digest   uint64
}

// load runs stat -> read -> parse -> validate, stopping at the first
// failing stage with that stage's ErrorKind.
func (w *Watcher) load(ctx context.Context) (snapshot, error) {
	info, err := w.stat()
	if err != nil {
		return snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return snapshot{}, err
	}

	data, err := w.fs.ReadFile(w.path)
	if err != nil {
		return snapshot{}, &Error{Kind: ReadFailure, Path: w.path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return snapshot{}, err
	}

	cfg, err := w.loader.Load(data)
	if err != nil {
		return snapshot{}, w.classify(err)
	}
	if cfg == nil {
		return snapshot{}, fmt.Errorf("%w: loader returned no configuration for %s", ErrUnclassified, w.path)
	}

	return snapshot{
		cfg:      cfg,
		modified: info.ModTime(),
		digest:   xxhash.Sum64(data),
	}, nil
}

func (w *Watcher) stat() (fs.FileInfo, error) {
	info, err := w.fs.Stat(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: NotFound, Path: w.path, Err: err}
		}
		return nil, &Error{Kind: MetadataUnavailable, Path: w.path, Err: err}
	}
	return info, nil
}

// classify maps a loader error onto the taxonomy.
func (w *Watcher) classify(err error) error {
	var ve *appconfig.ValidationError
	switch {
	case errors.As(err, &ve):
		return &Error{Kind: ValidationFailed, Path: w.path, Reason: ve.Reason, Err: err}
	case errors.Is(err, appconfig.ErrMalformed):
		return &Error{Kind: MalformedStructure, Path: w.path, Err: err}
	default:
		return fmt.Errorf("%w: loading %s: %w", ErrUnclassified, w.path, err)
	}
}

// commit publishes a successful load.
func (w *Watcher) commit(s snapshot) {
	w.lastModified.Store(s.modified)
	w.digest.Store(s.digest)
	w.current.Store(s.cfg)
	w.lastErr.Store(nil)
	w.loads.Inc()
	w.state.Store(int32(StateHasValidConfig))
}

func (w *Watcher) fail(kind EventKind, err error) {
	w.failures.Inc()
	w.lastErr.Store(err)
	w.emit(Event{Kind: kind, Err: err})
}

func (w *Watcher) emit(ev Event) {
	ev.Seq = w.seq.Inc()
	ev.Path = w.path
	ev.At = time.Now()
	w.obs.Observe(ev)
}
