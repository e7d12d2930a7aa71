package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"limbofuzz/internal/config"
	"limbofuzz/internal/db"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/oracle"
	"limbofuzz/internal/schema"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DSN = filepath.Join(dir, "limbo-%d.db")
	cfg.Seed = 7
	cfg.Workers = 2
	cfg.Iterations = 25
	cfg.QueriesPerDatabase = 10
	cfg.MaxInserts = 10
	cfg.Logging.ReportIntervalSeconds = 0
	cfg.Logging.ReportDir = filepath.Join(dir, "reports")
	return cfg
}

func TestRunCompletesIterations(t *testing.T) {
	cfg := testConfig(t)
	r, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	var runs int64
	for _, st := range r.stats.snapshot() {
		runs += st.Runs
	}
	require.Equal(t, int64(cfg.Workers*cfg.Iterations), runs)
	for i := 0; i < cfg.Workers; i++ {
		_, err := os.Stat(fmt.Sprintf(cfg.DSN, i))
		require.NoError(t, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Iterations = 0
	cfg.Workers = 1
	r, err := New(cfg, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))
}

func TestNewRejectsUnknownOracle(t *testing.T) {
	cfg := config.Default()
	cfg.Oracles.Only = "TLP_JOIN"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestPickRespectsMask(t *testing.T) {
	for _, adaptive := range []bool{false, true} {
		cfg := config.Default()
		cfg.Adaptive.Enabled = adaptive
		r, err := New(cfg, nil)
		require.NoError(t, err)
		require.Equal(t, adaptive, r.bandit != nil)

		w := &worker{r: r, gen: generator.New(cfg.Generator, nil, 3)}
		mask := make([]bool, len(r.names))
		mask[2] = true
		for i := 0; i < 20; i++ {
			idx := r.pick(w, mask)
			require.Equal(t, 2, idx)
			r.update(idx, oracle.Result{OK: true})
		}
	}
}

func TestReward(t *testing.T) {
	finding := reward(oracle.Result{OK: false})
	completed := reward(oracle.Result{OK: true})
	skipped := reward(oracle.Result{OK: true, Details: map[string]any{"skip_reason": "norec:ignore"}})
	require.Greater(t, finding, completed)
	require.Greater(t, completed, skipped)
}

func TestStatsRecord(t *testing.T) {
	s := newStats([]string{oracle.NameNoREC})
	s.record(oracle.Result{OK: true, Oracle: oracle.NameNoREC})
	s.record(oracle.Result{OK: true, Oracle: oracle.NameNoREC, Details: map[string]any{"skip_reason": "norec:ignore"}})
	s.record(oracle.Result{OK: false, Oracle: oracle.NameNoREC, Err: errors.New("boom")})
	s.record(oracle.Result{OK: false, Oracle: oracle.NamePQS})
	s.skip(oracle.NamePQS)

	snap := s.snapshot()
	require.Equal(t, oracleStats{Runs: 3, Skips: 1, Findings: 1, Errors: 1}, snap[oracle.NameNoREC])
	require.Equal(t, oracleStats{Runs: 2, Skips: 1, Findings: 1}, snap[oracle.NamePQS])
	require.Equal(t, int64(2), s.findings())
	require.Equal(t, []string{oracle.NameNoREC, oracle.NamePQS}, s.order)
	s.log(nil)
}

type recordingUploader struct {
	dirs []string
}

func (u *recordingUploader) Enabled() bool { return true }

func (u *recordingUploader) UploadDir(_ context.Context, dir string) (string, error) {
	u.dirs = append(u.dirs, dir)
	return "mem://" + filepath.Base(dir), nil
}

func TestHandleResultWritesAndUploadsCase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	up := &recordingUploader{}
	r, err := New(cfg, up)
	require.NoError(t, err)

	conn, err := db.Open(ctx, "sqlite", ":memory:", time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Exec(ctx, "CREATE TABLE t0 (c0 INT)"))
	require.NoError(t, conn.Exec(ctx, "INSERT INTO t0 VALUES (1)"))
	w := &worker{r: r, id: 1, seed: 9, dsn: ":memory:", conn: conn, sch: &schema.Schema{}}

	r.handleResult(ctx, w, oracle.Result{
		Oracle:   oracle.NameNoREC,
		SQL:      []string{"SELECT COUNT(*) FROM t0 WHERE c0"},
		Expected: "optimized count=1",
		Actual:   "unoptimized count=0",
		Details:  map[string]any{},
	})
	require.Len(t, up.dirs, 1)
	entries, err := os.ReadDir(cfg.Logging.ReportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(up.dirs[0], "summary.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"upload_location": "mem://`)
}
