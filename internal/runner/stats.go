package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"limbofuzz/internal/oracle"
	"limbofuzz/internal/util"
)

// oracleStats counts outcomes of one oracle.
type oracleStats struct {
	Runs     int64
	Skips    int64
	Findings int64
	Errors   int64
}

// stats aggregates outcomes across workers.
type stats struct {
	mu           sync.Mutex
	start        time.Time
	order        []string
	byOracle     map[string]*oracleStats
	skipReasons  map[string]int64
	actionErrors int64
}

func newStats(names []string) *stats {
	s := &stats{
		start:       time.Now(),
		order:       names,
		byOracle:    make(map[string]*oracleStats, len(names)),
		skipReasons: make(map[string]int64),
	}
	for _, name := range names {
		s.byOracle[name] = &oracleStats{}
	}
	return s
}

func (s *stats) record(res oracle.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(res.Oracle)
	st.Runs++
	switch {
	case !res.OK:
		st.Findings++
		if res.Err != nil {
			st.Errors++
		}
	case res.Skipped():
		st.Skips++
		s.skipReasons[res.SkipReason()]++
	}
}

// skip counts a run that could not start.
func (s *stats) skip(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(name)
	st.Runs++
	st.Skips++
	s.skipReasons["runner:no_rows"]++
}

func (s *stats) actionError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionErrors++
}

func (s *stats) entry(name string) *oracleStats {
	st, ok := s.byOracle[name]
	if !ok {
		st = &oracleStats{}
		s.byOracle[name] = st
		s.order = append(s.order, name)
	}
	return st
}

func (s *stats) findings() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, st := range s.byOracle {
		n += st.Findings
	}
	return n
}

// snapshot copies the per-oracle counters.
func (s *stats) snapshot() map[string]oracleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]oracleStats, len(s.byOracle))
	for name, st := range s.byOracle {
		out[name] = *st
	}
	return out
}

// log prints a summary line per oracle, the most frequent skip reasons and
// the bandit state when one is in use.
func (s *stats) log(bandit *util.Bandit) {
	s.mu.Lock()
	var total oracleStats
	lines := make([]string, 0, len(s.order))
	for _, name := range s.order {
		st := s.byOracle[name]
		total.Runs += st.Runs
		total.Skips += st.Skips
		total.Findings += st.Findings
		lines = append(lines, fmt.Sprintf("%s runs=%d skips=%d findings=%d errors=%d", name, st.Runs, st.Skips, st.Findings, st.Errors))
	}
	reasons := make([]string, 0, len(s.skipReasons))
	for reason := range s.skipReasons {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if s.skipReasons[reasons[i]] != s.skipReasons[reasons[j]] {
			return s.skipReasons[reasons[i]] > s.skipReasons[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	for i, reason := range reasons {
		reasons[i] = fmt.Sprintf("%s=%d", reason, s.skipReasons[reason])
	}
	actionErrors := s.actionErrors
	elapsed := time.Since(s.start).Round(time.Second)
	s.mu.Unlock()

	util.Infof("stats elapsed=%s runs=%d skips=%d findings=%d action_errors=%d", elapsed, total.Runs, total.Skips, total.Findings, actionErrors)
	for _, line := range lines {
		util.Infof("stats %s", line)
	}
	if len(reasons) > 0 {
		util.Infof("stats top skips %s", strings.Join(reasons, " "))
	}
	if bandit != nil {
		arms := bandit.Snapshot()
		parts := make([]string, len(arms))
		for i, arm := range arms {
			parts[i] = fmt.Sprintf("%s=%d/%.2f", arm.Name, arm.Plays, arm.Mean)
		}
		util.Infof("stats bandit %s", strings.Join(parts, " "))
	}
}

func (r *Runner) startStatsLogger() func() {
	interval := time.Duration(r.cfg.Logging.ReportIntervalSeconds) * time.Second
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				r.stats.log(r.bandit)
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
