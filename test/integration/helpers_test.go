//go:build integration

// Package integration provides end-to-end tests for the LogTrail API.
package integration

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/logtrail/logtrail/internal/api"
	"github.com/logtrail/logtrail/internal/correlate"
	"github.com/logtrail/logtrail/internal/ingest"
	"github.com/logtrail/logtrail/internal/store"
)

// TestApp holds all dependencies for integration tests.
type TestApp struct {
	Server *httptest.Server
	Store  *store.Store
	Corr   *correlate.Correlator
	Clock  *FakeClock

	// Cleanup function to release resources
	cleanup func()
}

// FakeClock is a settable time source shared between pipeline and server.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the fake clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// NewTestApp creates a new test application with all dependencies wired up.
// Call Close() when done to release resources.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	cfg := &testAppConfig{
		authEnabled: false,
		username:    "admin",
		password:    "password",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "logtrail-integration-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.sqlite")
	st, err := store.Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}

	clock := &FakeClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	corr := correlate.New(correlate.WithNowFunc(clock.Now))

	pipeline := ingest.New(st, corr, ingest.WithClock(clock))

	// Build server options
	serverOpts := []api.ServerOption{
		api.WithNowFunc(clock.Now),
	}
	if cfg.authEnabled {
		serverOpts = append(serverOpts, api.WithBasicAuth(cfg.username, cfg.password))
	}

	// Create server (addr is ignored for httptest)
	server := api.NewServer("127.0.0.1:0", pipeline, st, corr, serverOpts...)

	// Create test server
	ts := httptest.NewServer(server.Handler())

	cleanup := func() {
		ts.Close()
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return &TestApp{
		Server:  ts,
		Store:   st,
		Corr:    corr,
		Clock:   clock,
		cleanup: cleanup,
	}
}

// Close releases all resources.
func (app *TestApp) Close() {
	if app.cleanup != nil {
		app.cleanup()
	}
}

// URL returns the base URL of the test server.
func (app *TestApp) URL() string {
	return app.Server.URL
}

// PostLine submits one log line and returns the decoded response.
func (app *TestApp) PostLine(t *testing.T, raw, logID string) map[string]interface{} {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"log": raw, "log_id": logID})
	if err != nil {
		t.Fatalf("failed to marshal line: %v", err)
	}

	resp, err := http.Post(app.URL()+"/api/v1/ingest", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to post line: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest returned status %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

// testAppConfig holds configuration for test app.
type testAppConfig struct {
	authEnabled bool
	username    string
	password    string
}

// TestAppOption configures a test app.
type TestAppOption func(*testAppConfig)

// WithAuth enables authentication for the test app.
func WithAuth(username, password string) TestAppOption {
	return func(cfg *testAppConfig) {
		cfg.authEnabled = true
		cfg.username = username
		cfg.password = password
	}
}
