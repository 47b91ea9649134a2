package log_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/lc/confwatch/internal/log"
)

type LogTestSuite struct {
	suite.Suite
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (s *LogTestSuite) SetupTest() {
	s.stdout.Reset()
	s.stderr.Reset()
	log.SetLevel(zap.InfoLevel)
}

func (s *LogTestSuite) TearDownTest() {
	log.SetLevel(zap.InfoLevel)
}

func (s *LogTestSuite) TestSplitRoutesByLevel() {
	l := log.NewSplit(&s.stdout, &s.stderr)

	l.Infow("config loaded", "seq", 1)
	l.Warnw("config check failed", "seq", 2)
	l.Errorw("config load failed", "seq", 3)

	s.Contains(s.stdout.String(), `"msg":"config loaded"`)
	s.NotContains(s.stdout.String(), "failed")
	s.Contains(s.stderr.String(), `"msg":"config check failed"`)
	s.Contains(s.stderr.String(), `"msg":"config load failed"`)
	s.NotContains(s.stderr.String(), "config loaded")
}

func (s *LogTestSuite) TestSplitFollowsLevel() {
	l := log.NewSplit(&s.stdout, &s.stderr)
	log.SetLevel(zap.WarnLevel)

	l.Infow("config loaded")
	l.Debugw("tick")
	l.Warnw("config check failed")

	s.Empty(s.stdout.String())
	s.Contains(s.stderr.String(), "config check failed")
}

func TestLogSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}
