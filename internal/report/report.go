// Package report writes reproducible case directories for findings.
package report

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"limbofuzz/internal/db"
	"limbofuzz/internal/runinfo"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Archive file name and codec of a case.
const (
	CaseArchiveName  = "case.tar.zst"
	CaseArchiveCodec = "zstd"
)

const readme = `# Reproduce Case

- Apply schema: schema.sql
- Load data: inserts.sql
- Run the statements: case.sql
`

// Querier reads rows from the database a case was found on.
type Querier interface {
	Query(ctx context.Context, query string, maxRows int) (db.ResultSet, error)
}

// Reporter writes case artifacts to disk. It is safe for concurrent use by
// workers.
type Reporter struct {
	OutputDir       string
	MaxDataDumpRows int
	caseSeq         atomic.Int64
}

// Case describes a report directory.
type Case struct {
	ID  string
	Dir string
}

// Summary captures the persisted metadata for a case.
type Summary struct {
	Oracle         string         `json:"oracle"`
	SQL            []string       `json:"sql"`
	Expected       string         `json:"expected"`
	Actual         string         `json:"actual"`
	Error          string         `json:"error"`
	ErrorReason    string         `json:"error_reason"`
	Seed           int64          `json:"seed"`
	Worker         int            `json:"worker"`
	Database       string         `json:"database"`
	EngineVersion  string         `json:"engine_version"`
	UploadLocation string         `json:"upload_location"`
	CaseID         string         `json:"case_id"`
	CaseDir        string         `json:"case_dir"`
	ArchiveName    string         `json:"archive_name"`
	ArchiveCodec   string         `json:"archive_codec"`
	Details        map[string]any `json:"details"`
	RunInfo        *runinfo.Info  `json:"run_info,omitempty"`
	Timestamp      string         `json:"timestamp"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string, maxRows int) *Reporter {
	return &Reporter{OutputDir: outputDir, MaxDataDumpRows: maxRows}
}

// NewCase allocates a new case directory.
func (r *Reporter) NewCase() (Case, error) {
	seq := r.caseSeq.Add(1)
	caseID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		caseID = v7.String()
	}
	dir := filepath.Join(r.OutputDir, fmt.Sprintf("case_%04d_%s", seq, caseID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Case{}, errors.Wrap(err, "create case dir")
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return Case{}, errors.Wrap(err, "write readme")
	}
	return Case{ID: caseID, Dir: dir}, nil
}

// Write stores a complete case: the statements, the schema and data of the
// database, the summary and the archive of all of them.
func (r *Reporter) Write(ctx context.Context, q Querier, sch *schema.Schema, summary Summary) (Case, error) {
	c, err := r.NewCase()
	if err != nil {
		return Case{}, err
	}
	summary.CaseID = c.ID
	summary.CaseDir = c.Dir
	if summary.Timestamp == "" {
		summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if err := r.WriteSQL(c, "case.sql", summary.SQL); err != nil {
		return c, err
	}
	if q != nil {
		if err := r.DumpSchema(ctx, c, q); err != nil {
			util.Warnf("dump schema for case %s: %v", c.ID, err)
		}
		if sch != nil {
			if err := r.DumpData(ctx, c, q, sch); err != nil {
				util.Warnf("dump data for case %s: %v", c.ID, err)
			}
		}
	}
	summary.ArchiveName = CaseArchiveName
	summary.ArchiveCodec = CaseArchiveCodec
	if err := r.WriteSummary(c, summary); err != nil {
		return c, err
	}
	if _, _, err := r.WriteCaseArchive(c); err != nil {
		return c, err
	}
	return c, nil
}

// WriteSummary writes summary.json into the case directory. Detail keys are
// written in sorted order.
func (r *Reporter) WriteSummary(c Case, summary Summary) error {
	f, err := os.Create(filepath.Join(c.Dir, "summary.json"))
	if err != nil {
		return errors.Wrap(err, "create summary")
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(summary), "encode summary")
}

// WriteSQL writes a SQL file from the provided statements.
func (r *Reporter) WriteSQL(c Case, name string, statements []string) error {
	var b strings.Builder
	for _, stmt := range statements {
		b.WriteString(strings.TrimRight(stmt, "; \n"))
		b.WriteString(";\n")
	}
	return r.WriteText(c, name, b.String())
}

// WriteText writes raw text content into the case directory.
func (r *Reporter) WriteText(c Case, name string, content string) error {
	path := filepath.Join(c.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteCaseArchive creates a compressed archive for the case directory.
func (r *Reporter) WriteCaseArchive(c Case) (name string, codec string, err error) {
	archivePath := filepath.Join(c.Dir, CaseArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()
	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		return addFile(tw, c.Dir, path, d)
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return CaseArchiveName, CaseArchiveCodec, nil
}

func addFile(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(src, "archive source")
	_, err = io.Copy(tw, src)
	return err
}

// DumpSchema writes schema.sql with the DDL of every table, index and view.
func (r *Reporter) DumpSchema(ctx context.Context, c Case, q Querier) error {
	rs, err := q.Query(ctx, "SELECT sql FROM sqlite_master WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%' ORDER BY rowid", 0)
	if err != nil {
		return errors.Wrap(err, "read sqlite_master")
	}
	stmts := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) > 0 && row[0].IsText() {
			stmts = append(stmts, row[0].AsText())
		}
	}
	return r.WriteSQL(c, "schema.sql", stmts)
}

// DumpData writes inserts.sql with up to MaxDataDumpRows rows per table.
func (r *Reporter) DumpData(ctx context.Context, c Case, q Querier, sch *schema.Schema) error {
	var stmts []string
	for _, tbl := range sch.Tables {
		if tbl.View || tbl.Virtual {
			continue
		}
		query := "SELECT * FROM " + tbl.Name
		if r.MaxDataDumpRows > 0 {
			query += fmt.Sprintf(" LIMIT %d", r.MaxDataDumpRows)
		}
		rs, err := q.Query(ctx, query, 0)
		if err != nil {
			util.Warnf("dump table %s: %v", tbl.Name, err)
			continue
		}
		for _, row := range rs.Rows {
			lits := make([]string, len(row))
			for i, v := range row {
				lits[i] = v.String()
			}
			stmts = append(stmts, fmt.Sprintf("INSERT INTO %s VALUES (%s)", tbl.Name, strings.Join(lits, ", ")))
		}
	}
	return r.WriteSQL(c, "inserts.sql", stmts)
}
