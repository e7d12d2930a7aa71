// Package runner drives the fuzz loop: every worker owns a database, fills
// it with random tables and rows, and runs oracles against it.
package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"limbofuzz/internal/config"
	"limbofuzz/internal/oracle"
	"limbofuzz/internal/report"
	"limbofuzz/internal/runinfo"
	"limbofuzz/internal/uploader"
	"limbofuzz/internal/util"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// dumpRowsMax bounds the rows per table written to a case.
const dumpRowsMax = 1000

// Runner orchestrates workers, oracle selection and reporting.
type Runner struct {
	cfg      config.Config
	names    []string
	weights  []int
	bandit   *util.Bandit
	reporter *report.Reporter
	uploader uploader.Uploader
	stats    *stats
	runInfo  *runinfo.Info
}

// New constructs a Runner. up may be nil when nothing is uploaded.
func New(cfg config.Config, up uploader.Uploader) (*Runner, error) {
	names, err := oracle.Enabled(cfg.Oracles)
	if err != nil {
		return nil, err
	}
	if up == nil {
		up = uploader.NoopUploader{}
	}
	r := &Runner{
		cfg:      cfg,
		names:    names,
		reporter: report.New(cfg.Logging.ReportDir, dumpRowsMax),
		uploader: up,
		stats:    newStats(names),
		runInfo:  runinfo.FromEnv(),
	}
	for _, name := range names {
		r.weights = append(r.weights, max(oracle.Weight(name, cfg.Oracles.Weights), 1))
	}
	if cfg.Adaptive.Enabled && len(names) > 1 {
		r.bandit = util.NewBandit(names, cfg.Adaptive.UCBExploration)
	}
	return r, nil
}

// Run starts the workers and waits for them. Worker failures do not stop
// the others; they are returned together.
func (r *Runner) Run(ctx context.Context) error {
	stop := r.startStatsLogger()
	defer stop()
	util.Infof("runner start workers=%d iterations=%d oracles=%s", r.cfg.Workers, r.cfg.Iterations, strings.Join(r.names, ","))
	if r.runInfo != nil {
		util.Infof("ci provider=%s repository=%s commit=%s run=%s", r.runInfo.Provider, r.runInfo.Repository, r.runInfo.Commit, r.runInfo.RunID)
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
		g    errgroup.Group
	)
	for i := 0; i < r.cfg.Workers; i++ {
		w := r.newWorker(i)
		g.Go(func() error {
			if err := w.run(ctx); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, errors.Wrapf(err, "worker %d", w.id))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	r.stats.log(r.bandit)
	return errs.ErrorOrNil()
}

// Findings returns the number of reported cases so far.
func (r *Runner) Findings() int64 {
	return r.stats.findings()
}

// pick selects the next oracle index among those enabled by mask.
func (r *Runner) pick(w *worker, mask []bool) int {
	if r.bandit != nil {
		return r.bandit.Pick(w.gen.Rand, mask)
	}
	return util.PickWeighted(w.gen.Rand, r.weights, mask)
}

// reward scores an oracle run for the bandit: findings score highest,
// completed comparisons a little, skipped attempts nothing.
func reward(res oracle.Result) float64 {
	switch {
	case !res.OK:
		return 1
	case res.Skipped():
		return 0
	default:
		return 0.2
	}
}

func (r *Runner) update(idx int, res oracle.Result) {
	if r.bandit != nil {
		r.bandit.Update(idx, reward(res))
	}
}

// handleResult writes a case for a finding and uploads it.
func (r *Runner) handleResult(ctx context.Context, w *worker, res oracle.Result) {
	summary := report.Summary{
		Oracle:        res.Oracle,
		SQL:           res.SQL,
		Expected:      res.Expected,
		Actual:        res.Actual,
		Seed:          w.seed,
		Worker:        w.id,
		Database:      w.dsn,
		EngineVersion: w.version,
		Details:       res.Details,
		RunInfo:       r.runInfo,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}
	if reason, ok := res.Details["error_reason"].(string); ok {
		summary.ErrorReason = reason
	}
	c, err := r.reporter.Write(ctx, w.conn, w.sch, summary)
	if err != nil {
		util.Errorf("write case for %s: %v", res.Oracle, err)
		return
	}
	util.Errorf("%s finding in %s: expected %s, actual %s, err %v", res.Oracle, c.Dir, res.Expected, res.Actual, res.Err)
	if !r.uploader.Enabled() {
		return
	}
	loc, err := r.uploader.UploadDir(ctx, c.Dir)
	if err != nil {
		util.Warnf("upload %s: %v", c.Dir, err)
		return
	}
	if loc == "" {
		return
	}
	util.Infof("uploaded %s to %s", c.ID, loc)
	summary.CaseID = c.ID
	summary.CaseDir = c.Dir
	summary.ArchiveName = report.CaseArchiveName
	summary.ArchiveCodec = report.CaseArchiveCodec
	summary.UploadLocation = loc
	if err := r.reporter.WriteSummary(c, summary); err != nil {
		util.Warnf("update summary of %s: %v", c.ID, err)
	}
}
