package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/buildinfo"
	"github.com/lc/confwatch/internal/watcher"
	"github.com/lc/confwatch/pkg/api"
)

type fakeSource struct {
	cfg    *appconfig.Config
	status watcher.Status
}

func (f *fakeSource) Current() (*appconfig.Config, bool) { return f.cfg, f.cfg != nil }
func (f *fakeSource) Status() watcher.Status             { return f.status }

type APITestSuite struct {
	suite.Suite
	src *fakeSource
	srv *api.Server
}

func (s *APITestSuite) SetupTest() {
	s.src = &fakeSource{
		status: watcher.Status{
			RunID:    "run-1",
			Path:     "/etc/app/config.json",
			Interval: 2 * time.Second,
			State:    watcher.StateAwaitingFirstValid,
		},
	}
	s.srv = api.New(s.src)
}

func (s *APITestSuite) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func (s *APITestSuite) TestStatusWithoutConfig() {
	s.src.status.LastError = &watcher.Error{Kind: watcher.NotFound, Path: "/etc/app/config.json"}
	s.src.status.Failures = 1

	rec := s.do(http.MethodGet, "/v1/status")

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))
	var resp api.StatusResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("run-1", resp.RunID)
	s.Equal("awaiting_first_valid", resp.State)
	s.Equal(2*time.Second, resp.Interval)
	s.Nil(resp.LastModified)
	s.Empty(resp.Digest)
	s.Equal("configuration file not found: /etc/app/config.json", resp.LastError)
	s.Equal(int64(1), resp.Failures)
	s.Equal(buildinfo.Version, resp.Version)
}

func (s *APITestSuite) TestStatusWithConfig() {
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.src.status.State = watcher.StateHasValidConfig
	s.src.status.LastModified = mod
	s.src.status.Digest = 0xbeef
	s.src.status.Loads = 2

	resp := s.srv.Snapshot()

	s.Equal("has_valid_config", resp.State)
	s.Require().NotNil(resp.LastModified)
	s.True(mod.Equal(*resp.LastModified))
	s.Equal("beef", resp.Digest)
	s.Empty(resp.LastError)
	s.Equal(int64(2), resp.Loads)
}

func (s *APITestSuite) TestConfigNotLoaded() {
	rec := s.do(http.MethodGet, "/v1/config")

	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "no valid configuration loaded")
}

func (s *APITestSuite) TestConfigLoaded() {
	s.src.cfg = &appconfig.Config{
		AppName:     "TestApp",
		Version:     "2.0.0",
		Environment: appconfig.Production,
		Server:      &appconfig.ServerConfig{Host: "localhost", Port: 8080},
	}

	rec := s.do(http.MethodGet, "/v1/config")

	s.Require().Equal(http.StatusOK, rec.Code)
	var cfg appconfig.Config
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&cfg))
	s.True(s.src.cfg.Equal(&cfg))
}

func (s *APITestSuite) TestMethodNotAllowed() {
	for _, path := range []string{"/v1/status", "/v1/config"} {
		s.Run(path, func() {
			rec := s.do(http.MethodPost, path)
			s.Equal(http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
