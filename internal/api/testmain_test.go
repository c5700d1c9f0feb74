package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
	"github.com/ericbrian/track-me-sub001/internal/sampling"
	"github.com/ericbrian/track-me-sub001/internal/timeutil"
	"github.com/ericbrian/track-me-sub001/internal/tracking"
)

// templatePath is a migrated database copied into each test so the
// migrations run once per package.
var templatePath string

func TestMain(m *testing.M) {
	os.Exit(runTestMain(m))
}

func runTestMain(m *testing.M) int {
	tmpDir, err := os.MkdirTemp("", "trackme-api-template-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create template dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(tmpDir)

	templatePath = filepath.Join(tmpDir, "template.db")
	if err := buildTemplate(templatePath); err != nil {
		fmt.Fprintf(os.Stderr, "build template DB: %v\n", err)
		return 1
	}
	return m.Run()
}

func buildTemplate(path string) error {
	d, err := db.NewDB(path)
	if err != nil {
		return err
	}
	if _, err := d.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

func cloneTestDB(t *testing.T) *db.DB {
	t.Helper()
	require.NotEmpty(t, templatePath, "template DB not initialized")

	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, copyFile(templatePath, path))
	d, err := db.OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *db.SessionStore
	tracker *tracking.Orchestrator
	clock   *timeutil.MockClock
	server  *Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	store := db.NewSessionStore(cloneTestDB(t))
	engine, err := sampling.NewEngine(sampling.Permissive())
	require.NoError(t, err)
	clock := timeutil.NewMockClock(t0)
	tracker := tracking.New(engine, store, clock)
	return &fixture{
		store:   store,
		tracker: tracker,
		clock:   clock,
		server:  NewServer(store, tracker, opts),
	}
}
