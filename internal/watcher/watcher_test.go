package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/mocks"
)

const (
	minimalConfig = `{"app_name":"TestApp","version":"1.0.0"}`
	devConfig     = `{"app_name":"TestApp","version":"1.0.0","environment":"development"}`
	prodConfig    = `{"app_name":"TestApp","version":"2.0.0","environment":"production"}`
	invalidJSON   = `{ invalid }`
	badVersion    = `{"app_name":"TestApp","version":"2"}`
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) kinds() []EventKind {
	var out []EventKind
	for _, ev := range r.all() {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) last() Event {
	evs := r.all()
	if len(evs) == 0 {
		return Event{}
	}
	return evs[len(evs)-1]
}

type WatcherTestSuite struct {
	suite.Suite
	path string
	base time.Time
	rec  *recorder
	w    *Watcher
	ctx  context.Context
}

func (s *WatcherTestSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "config.json")
	s.base = time.Now().Add(-time.Hour).Truncate(time.Second)
	s.rec = &recorder{}
	s.w = New(s.path, time.Second, WithObserver(s.rec))
	s.ctx = context.Background()
}

// writeAt writes content and pins the file's modification time to mod.
func (s *WatcherTestSuite) writeAt(content string, mod time.Time) {
	s.Require().NoError(os.WriteFile(s.path, []byte(content), 0o644))
	s.Require().NoError(os.Chtimes(s.path, mod, mod))
}

func (s *WatcherTestSuite) at(sec int) time.Time {
	return s.base.Add(time.Duration(sec) * time.Second)
}

func (s *WatcherTestSuite) TestNewDoesNotTouchFilesystem() {
	m := new(mocks.MockOsFS)
	w := New("/nonexistent/config.json", time.Second, WithFS(m))

	cfg, ok := w.Current()
	s.False(ok)
	s.Nil(cfg)
	s.Equal(StateUninitialized, w.Status().State)
	s.True(w.Status().LastModified.IsZero())
	m.AssertNotCalled(s.T(), "Stat", "/nonexistent/config.json")
}

func (s *WatcherTestSuite) TestInitialLoadAppliesDefaults() {
	s.writeAt(minimalConfig, s.at(0))

	s.Require().NoError(s.w.initialLoad(s.ctx))

	s.Equal([]EventKind{EventLoaded}, s.rec.kinds())
	cfg, ok := s.w.Current()
	s.Require().True(ok)
	s.Equal(appconfig.Development, cfg.Environment)
	s.Empty(cfg.Features)
	s.Equal(StateHasValidConfig, s.w.Status().State)
	s.True(s.at(0).Equal(s.w.Status().LastModified))
	s.NotZero(s.rec.last().Digest)
	s.Equal(uint64(1), s.rec.last().Seq)
}

func (s *WatcherTestSuite) TestInitialLoadFailureKeepsGoing() {
	s.writeAt(invalidJSON, s.at(0))

	s.Require().NoError(s.w.initialLoad(s.ctx))

	s.Equal([]EventKind{EventInitialLoadFailed}, s.rec.kinds())
	s.Equal(MalformedStructure, KindOf(s.rec.last().Err))
	_, ok := s.w.Current()
	s.False(ok)
	st := s.w.Status()
	s.Equal(StateAwaitingFirstValid, st.State)
	s.True(st.LastModified.IsZero())
	s.Equal(int64(1), st.Failures)
	s.ErrorIs(st.LastError, ErrMalformedStructure)
}

func (s *WatcherTestSuite) TestInitialLoadMissingFile() {
	s.Require().NoError(s.w.initialLoad(s.ctx))

	s.Equal([]EventKind{EventInitialLoadFailed}, s.rec.kinds())
	s.ErrorIs(s.rec.last().Err, ErrNotFound)
	s.ErrorIs(s.rec.last().Err, fs.ErrNotExist)
}

func (s *WatcherTestSuite) TestUnchangedTimestampIsSilent() {
	s.writeAt(devConfig, s.at(0))
	s.Require().NoError(s.w.initialLoad(s.ctx))
	before, _ := s.w.Current()

	for i := 0; i < 3; i++ {
		s.Require().NoError(s.w.tick(s.ctx))
	}

	after, _ := s.w.Current()
	s.Same(before, after)
	s.Equal([]EventKind{EventLoaded}, s.rec.kinds())
	s.Equal(int64(3), s.w.Status().Checks)
	s.Equal(int64(1), s.w.Status().Loads)
}

func (s *WatcherTestSuite) TestChangeDetection() {
	s.writeAt(devConfig, s.at(10))
	s.Require().NoError(s.w.initialLoad(s.ctx))

	s.Run("newer timestamp is a change", func() {
		s.writeAt(prodConfig, s.at(20))
		s.Require().NoError(s.w.tick(s.ctx))

		ev := s.rec.last()
		s.Equal(EventUpdated, ev.Kind)
		s.Equal("2.0.0", ev.Config.Version)
		s.Require().NotNil(ev.Previous)
		s.Equal("1.0.0", ev.Previous.Version)
		s.True(s.at(20).Equal(s.w.Status().LastModified))
	})

	s.Run("equal timestamp is not a change", func() {
		s.writeAt(devConfig, s.at(20))
		s.Require().NoError(s.w.tick(s.ctx))

		cfg, _ := s.w.Current()
		s.Equal("2.0.0", cfg.Version)
		s.Len(s.rec.all(), 2)
	})

	s.Run("older timestamp is not a change", func() {
		s.writeAt(devConfig, s.at(5))
		s.Require().NoError(s.w.tick(s.ctx))

		cfg, _ := s.w.Current()
		s.Equal("2.0.0", cfg.Version)
		s.Len(s.rec.all(), 2)
		s.True(s.at(20).Equal(s.w.Status().LastModified))
	})
}

func (s *WatcherTestSuite) TestTouchWithSameContent() {
	s.writeAt(devConfig, s.at(0))
	s.Require().NoError(s.w.initialLoad(s.ctx))
	first, _ := s.w.Current()

	// Same content, reformatted: structurally equal.
	s.writeAt("{\n  \"version\": \"1.0.0\",\n  \"app_name\": \"TestApp\"\n}\n", s.at(1))
	s.Require().NoError(s.w.tick(s.ctx))

	s.Equal([]EventKind{EventLoaded, EventContentUnchanged}, s.rec.kinds())
	s.True(s.at(1).Equal(s.w.Status().LastModified))
	second, _ := s.w.Current()
	s.True(first.Equal(second))
}

func (s *WatcherTestSuite) TestLastValidConfigSurvivesFailures() {
	s.writeAt(prodConfig, s.at(0))
	s.Require().NoError(s.w.initialLoad(s.ctx))
	want, _ := s.w.Current()

	s.writeAt(invalidJSON, s.at(1))
	s.Require().NoError(s.w.tick(s.ctx))
	s.Equal(EventReloadFailed, s.rec.last().Kind)
	s.ErrorIs(s.rec.last().Err, ErrMalformedStructure)

	s.writeAt(badVersion, s.at(2))
	s.Require().NoError(s.w.tick(s.ctx))
	s.Equal(EventReloadFailed, s.rec.last().Kind)
	s.ErrorIs(s.rec.last().Err, ErrValidationFailed)
	var we *Error
	s.Require().True(errors.As(s.rec.last().Err, &we))
	s.Contains(we.Reason, "semver")

	s.Require().NoError(os.Remove(s.path))
	s.Require().NoError(s.w.tick(s.ctx))
	s.Equal(EventCheckError, s.rec.last().Kind)
	s.ErrorIs(s.rec.last().Err, ErrNotFound)

	got, ok := s.w.Current()
	s.Require().True(ok)
	s.Same(want, got)
	st := s.w.Status()
	s.Equal(StateHasValidConfig, st.State)
	s.True(s.at(0).Equal(st.LastModified))
	s.Equal(int64(3), st.Failures)
}

func (s *WatcherTestSuite) TestFailingFileIsRetriedEachTick() {
	s.writeAt(devConfig, s.at(0))
	s.Require().NoError(s.w.initialLoad(s.ctx))

	s.writeAt(invalidJSON, s.at(1))
	s.Require().NoError(s.w.tick(s.ctx))
	s.Require().NoError(s.w.tick(s.ctx))

	s.Equal([]EventKind{EventLoaded, EventReloadFailed, EventReloadFailed}, s.rec.kinds())

	s.writeAt(prodConfig, s.at(1))
	s.Require().NoError(s.w.tick(s.ctx))
	s.Equal(EventUpdated, s.rec.last().Kind)
}

func (s *WatcherTestSuite) TestFirstSuccessPromotion() {
	s.writeAt(badVersion, s.at(0))
	s.Require().NoError(s.w.initialLoad(s.ctx))
	s.Equal(StateAwaitingFirstValid, s.w.Status().State)

	s.writeAt(devConfig, s.at(1))
	s.Require().NoError(s.w.tick(s.ctx))

	ev := s.rec.last()
	s.Equal(EventUpdated, ev.Kind)
	s.Nil(ev.Previous)
	_, ok := s.w.Current()
	s.True(ok)
	s.Equal(StateHasValidConfig, s.w.Status().State)
	s.NoError(s.w.Status().LastError)
}

func (s *WatcherTestSuite) TestCancelledAttemptEmitsNothing() {
	s.writeAt(devConfig, s.at(0))
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	s.Require().NoError(s.w.initialLoad(ctx))

	s.Empty(s.rec.all())
	s.Equal(StateUninitialized, s.w.Status().State)
}

func (s *WatcherTestSuite) TestMetadataUnavailable() {
	m := new(mocks.MockOsFS)
	m.On("Stat", "/etc/app/config.json").Return(nil, fs.ErrPermission)
	w := New("/etc/app/config.json", time.Second, WithFS(m), WithObserver(s.rec))

	s.Require().NoError(w.initialLoad(s.ctx))
	s.Require().NoError(w.tick(s.ctx))

	s.Equal([]EventKind{EventInitialLoadFailed, EventCheckError}, s.rec.kinds())
	for _, ev := range s.rec.all() {
		s.Equal(MetadataUnavailable, KindOf(ev.Err))
		s.ErrorIs(ev.Err, fs.ErrPermission)
	}
	m.AssertNotCalled(s.T(), "ReadFile", "/etc/app/config.json")
}

func (s *WatcherTestSuite) TestReadFailureAfterChange() {
	m := new(mocks.MockOsFS)
	info := mocks.FileInfo{FileName: "config.json", Modified: s.at(0)}
	m.On("Stat", "/etc/app/config.json").Return(info, nil)
	m.On("ReadFile", "/etc/app/config.json").Return(nil, errors.New("input/output error"))
	w := New("/etc/app/config.json", time.Second, WithFS(m), WithObserver(s.rec))

	s.Require().NoError(w.initialLoad(s.ctx))
	s.Require().NoError(w.tick(s.ctx))

	s.Equal([]EventKind{EventInitialLoadFailed, EventReloadFailed}, s.rec.kinds())
	s.Equal(ReadFailure, KindOf(s.rec.last().Err))
	s.Contains(s.rec.last().Err.Error(), "input/output error")
	m.AssertNumberOfCalls(s.T(), "ReadFile", 2)
}

func (s *WatcherTestSuite) TestUnclassifiedLoaderErrorStopsWatch() {
	s.writeAt(devConfig, s.at(0))
	w := New(s.path, 10*time.Millisecond, WithObserver(s.rec), WithLoader(appconfig.LoaderFunc(
		func([]byte) (*appconfig.Config, error) { return nil, errors.New("loader bug") },
	)))

	err := w.Watch(s.ctx)

	s.Require().Error(err)
	s.ErrorIs(err, ErrUnclassified)
	s.Contains(err.Error(), "loader bug")
	s.Empty(s.rec.all())
}

func (s *WatcherTestSuite) TestNilConfigFromLoaderIsUnclassified() {
	s.writeAt(devConfig, s.at(0))
	w := New(s.path, time.Second, WithLoader(appconfig.LoaderFunc(
		func([]byte) (*appconfig.Config, error) { return nil, nil },
	)))

	s.ErrorIs(w.initialLoad(s.ctx), ErrUnclassified)
}

func (s *WatcherTestSuite) TestObserversFanOutInOrder() {
	var order []string
	obs := Observers(
		ObserverFunc(func(Event) { order = append(order, "a") }),
		nil,
		ObserverFunc(func(Event) { order = append(order, "b") }),
	)
	obs.Observe(Event{Kind: EventLoaded})
	s.Equal([]string{"a", "b"}, order)
}

func (s *WatcherTestSuite) TestCheckDoesNotPublish() {
	s.writeAt(prodConfig, s.at(0))

	cfg, digest, err := s.w.Check(s.ctx)

	s.Require().NoError(err)
	s.Equal("2.0.0", cfg.Version)
	s.NotZero(digest)
	s.Empty(s.rec.all())
	_, ok := s.w.Current()
	s.False(ok)
	s.Equal(StateUninitialized, s.w.Status().State)
}

func (s *WatcherTestSuite) TestCheckReportsStage() {
	s.writeAt(badVersion, s.at(0))

	_, _, err := s.w.Check(s.ctx)

	s.ErrorIs(err, ErrValidationFailed)
	s.Contains(err.Error(), "should follow semver format")
	s.Empty(s.rec.all())
}

func (s *WatcherTestSuite) TestCheckRequiresExactKeys() {
	s.writeAt(`{"App_Name":"Shadow","VERSION":"9.9"}`, s.at(0))

	cfg, _, err := s.w.Check(s.ctx)

	s.Nil(cfg)
	s.ErrorIs(err, ErrMalformedStructure)
	s.Contains(err.Error(), "missing field `app_name`")
}

func TestWatcherSuite(t *testing.T) {
	suite.Run(t, new(WatcherTestSuite))
}

// TestWatchScenario drives the real loop: initial load, one update, then a
// broken file that must not replace the update.
func TestWatchScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	base := time.Now().Add(time.Hour).Truncate(time.Second)
	// The loop is running, so each version is staged and renamed into place
	// with its timestamp already set.
	write := func(content string, mod time.Time) {
		tmp := filepath.Join(dir, "staged.json")
		require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(tmp, mod, mod))
		require.NoError(t, os.Rename(tmp, path))
	}
	count := func(rec *recorder, kind EventKind) int {
		n := 0
		for _, k := range rec.kinds() {
			if k == kind {
				n++
			}
		}
		return n
	}

	write(devConfig, base)
	rec := &recorder{}
	w := New(path, 10*time.Millisecond, WithObserver(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	require.Eventually(t, func() bool { return count(rec, EventLoaded) == 1 }, 2*time.Second, 5*time.Millisecond)

	write(prodConfig, base.Add(time.Second))
	require.Eventually(t, func() bool { return count(rec, EventUpdated) == 1 }, 2*time.Second, 5*time.Millisecond)
	cfg, ok := w.Current()
	require.True(t, ok)
	require.Equal(t, "2.0.0", cfg.Version)
	require.Equal(t, appconfig.Production, cfg.Environment)

	write(invalidJSON, base.Add(2*time.Second))
	require.Eventually(t, func() bool { return count(rec, EventReloadFailed) >= 1 }, 2*time.Second, 5*time.Millisecond)

	cfg, ok = w.Current()
	require.True(t, ok)
	require.Equal(t, "2.0.0", cfg.Version)
	require.Equal(t, appconfig.Production, cfg.Environment)
	require.Equal(t, 1, count(rec, EventUpdated))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}

	evs := rec.all()
	for i, ev := range evs {
		require.Equal(t, uint64(i+1), ev.Seq, "events must be delivered in order")
	}
}
