package report

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/lc/confwatch/internal/watcher"
)

// Log records events as structured zap entries. Successful outcomes log at
// info, check errors at warn and load failures at error.
type Log struct {
	l *zap.SugaredLogger
}

var _ watcher.Observer = (*Log)(nil)

// NewLog returns a Log writing to l.
func NewLog(l *zap.SugaredLogger) *Log {
	return &Log{l: l}
}

// Observe writes one event.
func (r *Log) Observe(ev watcher.Event) {
	kv := []any{
		"event", ev.Kind.String(),
		"seq", ev.Seq,
		"path", ev.Path,
	}
	if ev.Config != nil {
		s := ev.Config.Summarize()
		kv = append(kv,
			"app", s.AppName,
			"version", s.Version,
			"environment", string(s.Environment),
			"server", s.HasServer,
			"database", s.HasDatabase,
			"features_enabled", s.EnabledFeatures,
			"modified", ev.Modified,
			"digest", strconv.FormatUint(ev.Digest, 16),
		)
	}
	if ev.Previous != nil {
		kv = append(kv, "previous_version", ev.Previous.Version)
	}
	if ev.Err != nil {
		kv = append(kv, "error", ev.Err.Error(), "error_kind", watcher.KindOf(ev.Err).String())
	}

	switch ev.Kind {
	case watcher.EventCheckError:
		r.l.Warnw("config check failed", kv...)
	case watcher.EventInitialLoadFailed, watcher.EventReloadFailed:
		r.l.Errorw("config load failed", kv...)
	default:
		r.l.Infow("config "+ev.Kind.String(), kv...)
	}
}
