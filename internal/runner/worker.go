package runner

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"limbofuzz/internal/db"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/oracle"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"

	"github.com/pkg/errors"
)

const (
	// insertActionProb and indexActionProb are percent chances of a DML or
	// DDL statement between two oracle runs.
	insertActionProb = 10
	indexActionProb  = 2
	setupAttempts    = 3
)

var (
	tableErrors  = db.NewExpectedErrors(db.SchemaErrors, db.ExpressionErrors)
	insertErrors = db.NewExpectedErrors(db.InsertErrors, db.ExpressionErrors)
	indexErrors  = db.NewExpectedErrors(db.SchemaErrors, db.ExpressionErrors, db.InsertErrors)
)

// worker owns one database file and runs oracles against it.
type worker struct {
	r       *Runner
	id      int
	seed    int64
	dsn     string
	rand    *rand.Rand
	oracles []oracle.Oracle

	conn    *db.DB
	sch     *schema.Schema
	gen     *generator.Generator
	version string
	// indexSeq numbers created indexes.
	indexSeq int
	// empty is set while some base table holds no row.
	empty bool
}

func (r *Runner) newWorker(id int) *worker {
	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	seed += int64(id)
	dsn := r.cfg.DSN
	if strings.Contains(dsn, "%d") {
		dsn = fmt.Sprintf(dsn, id)
	}
	w := &worker{r: r, id: id, seed: seed, dsn: dsn, rand: rand.New(rand.NewSource(seed))}
	// QUERY_PARTITIONING keeps state between runs, so every worker gets its
	// own instances.
	for _, name := range r.names {
		o, _ := oracle.New(name, r.cfg)
		w.oracles = append(w.oracles, o)
	}
	return w
}

// run fuzzes until the iteration budget is spent or ctx is done. Errors
// caused by cancellation are not reported.
func (w *worker) run(ctx context.Context) error {
	err := w.loop(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *worker) loop(ctx context.Context) error {
	cfg := w.r.cfg
	if err := db.EnsureDatabase(w.dsn); err != nil {
		return err
	}
	conn, err := db.Open(ctx, cfg.Driver, w.dsn, time.Duration(cfg.StatementTimeoutMs)*time.Millisecond)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(conn, "worker db")
	w.conn = conn
	if versions, err := conn.QueryStrings(ctx, "SELECT sqlite_version()"); err == nil && len(versions) > 0 {
		w.version = versions[0]
	}
	util.Infof("worker %d seed=%d db=%s version=%s", w.id, w.seed, w.dsn, w.version)

	if err := w.setup(ctx); err != nil {
		return err
	}
	for i := 0; cfg.Iterations <= 0 || i < cfg.Iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if i > 0 && i%cfg.QueriesPerDatabase == 0 {
			if err := w.reset(ctx); err != nil {
				return err
			}
		}
		w.step(ctx)
	}
	return nil
}

// setup creates tables, rows and indexes, retrying on unexpected errors.
func (w *worker) setup(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= setupAttempts; attempt++ {
		if err = w.populate(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		util.Warnf("worker %d setup attempt %d: %v", w.id, attempt, err)
		if derr := w.dropAll(ctx); derr != nil {
			return derr
		}
	}
	return errors.Wrapf(err, "setup after %d attempts", setupAttempts)
}

func (w *worker) populate(ctx context.Context) error {
	cfg := w.r.cfg
	if err := w.reload(ctx); err != nil {
		return err
	}
	tables := 1 + w.rand.Intn(cfg.MaxTables)
	for i := 0; i < tables; i++ {
		if err := w.exec(ctx, w.gen.CreateTableSQL(fmt.Sprintf("t%d", i)), tableErrors); err != nil {
			return err
		}
	}
	if err := w.reload(ctx); err != nil {
		return err
	}
	for i := 0; i < cfg.MaxInserts; i++ {
		if err := w.insert(ctx); err != nil {
			return err
		}
	}
	if cfg.MaxIndexes > 0 {
		indexes := w.rand.Intn(cfg.MaxIndexes + 1)
		for i := 0; i < indexes; i++ {
			if err := w.createIndex(ctx); err != nil {
				return err
			}
		}
	}
	return w.reload(ctx)
}

// reset drops every table and builds a fresh database state.
func (w *worker) reset(ctx context.Context) error {
	if err := w.dropAll(ctx); err != nil {
		return err
	}
	return w.setup(ctx)
}

func (w *worker) dropAll(ctx context.Context) error {
	if err := w.reload(ctx); err != nil {
		return err
	}
	for _, tbl := range w.sch.Tables {
		stmt := w.gen.DropTableSQL(tbl.Name)
		if tbl.View {
			stmt = "DROP VIEW IF EXISTS " + tbl.Name
		}
		if err := w.exec(ctx, stmt, tableErrors); err != nil {
			return err
		}
	}
	return w.reload(ctx)
}

// reload refreshes the schema snapshot, the generator over it and the
// emptiness flag.
func (w *worker) reload(ctx context.Context) error {
	sch, err := schema.Load(ctx, w.conn, w.rand)
	if err != nil {
		return err
	}
	w.sch = sch
	w.gen = generator.NewWithRand(w.r.cfg.Generator, sch, w.rand)
	w.empty = false
	for _, id := range sch.BaseTableIDs() {
		n, err := w.conn.QueryCount(ctx, "SELECT COUNT(*) FROM "+sch.Table(id).Name)
		if err != nil {
			return errors.Wrapf(err, "count rows of %s", sch.Table(id).Name)
		}
		if n == 0 {
			w.empty = true
		}
	}
	return nil
}

func (w *worker) insert(ctx context.Context) error {
	ids := w.sch.BaseTableIDs()
	if len(ids) == 0 {
		return nil
	}
	tbl := w.sch.Table(util.Pick(w.rand, ids))
	return w.exec(ctx, w.gen.InsertSQL(tbl), insertErrors)
}

func (w *worker) createIndex(ctx context.Context) error {
	ids := w.sch.BaseTableIDs()
	if len(ids) == 0 {
		return nil
	}
	tbl := w.sch.Table(util.Pick(w.rand, ids))
	w.indexSeq++
	name := fmt.Sprintf("i%d", w.indexSeq)
	return w.exec(ctx, w.gen.CreateIndexSQL(name, tbl), indexErrors)
}

// exec runs a setup statement. Expected errors are dropped.
func (w *worker) exec(ctx context.Context, stmt string, expected db.ExpectedErrors) error {
	err := w.conn.Exec(ctx, stmt)
	if err == nil || expected.Matches(err) {
		return nil
	}
	return errors.Wrapf(err, "exec %q", stmt)
}

// step runs an optional DML or DDL statement and one oracle.
func (w *worker) step(ctx context.Context) {
	switch {
	case w.empty || util.Chance(w.rand, insertActionProb):
		w.action(ctx, "insert", w.insert)
	case util.Chance(w.rand, indexActionProb):
		w.action(ctx, "create_index", w.createIndex)
	}

	mask := make([]bool, len(w.r.names))
	runnable := false
	for i, name := range w.r.names {
		mask[i] = !w.empty || !oracle.RequiresRows(name)
		runnable = runnable || mask[i]
	}
	if !runnable {
		w.r.stats.skip(w.r.names[0])
		return
	}
	idx := w.r.pick(w, mask)
	res := w.oracles[idx].Run(ctx, w.conn, w.gen, w.sch)
	w.r.stats.record(res)
	w.r.update(idx, res)
	if !res.OK {
		w.r.handleResult(ctx, w, res)
	}
}

// action runs one state change between oracle runs. Unexpected errors are
// logged; the engine state is reloaded either way.
func (w *worker) action(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		util.Warnf("worker %d %s: %v", w.id, name, err)
		w.r.stats.actionError()
	}
	if err := w.reload(ctx); err != nil && ctx.Err() == nil {
		util.Warnf("worker %d reload schema: %v", w.id, err)
	}
}
