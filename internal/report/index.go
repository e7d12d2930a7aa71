package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"limbofuzz/internal/util"

	"github.com/pkg/errors"
)

// IndexName is the file written by WriteIndex.
const IndexName = "report.json"

// FileContent holds an inlined case file, cut at the configured size.
type FileContent struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// CaseEntry is one case in the index.
type CaseEntry struct {
	Summary
	Dir   string                 `json:"dir"`
	Files map[string]FileContent `json:"files"`
}

// Index lists every case below a report directory, newest first.
type Index struct {
	GeneratedAt string         `json:"generated_at"`
	Source      string         `json:"source"`
	ByOracle    map[string]int `json:"by_oracle"`
	ByReason    map[string]int `json:"by_error_reason"`
	Cases       []CaseEntry    `json:"cases"`
}

var indexedFiles = []string{"case.sql", "schema.sql", "inserts.sql"}

// BuildIndex reads every case directory under root. Directories without a
// readable summary.json are skipped.
func BuildIndex(root string, maxBytes int) (Index, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return Index{}, errors.Wrapf(err, "read %s", root)
	}
	idx := Index{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      root,
		ByOracle:    map[string]int{},
		ByReason:    map[string]int{},
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		entry, err := readCase(filepath.Join(root, d.Name()), maxBytes)
		if err != nil {
			util.Warnf("skip case %s: %v", d.Name(), err)
			continue
		}
		if entry.CaseID == "" {
			entry.CaseID = d.Name()
		}
		idx.ByOracle[entry.Oracle]++
		if entry.ErrorReason != "" {
			idx.ByReason[entry.ErrorReason]++
		}
		idx.Cases = append(idx.Cases, entry)
	}
	sort.SliceStable(idx.Cases, func(i, j int) bool {
		return idx.Cases[i].Timestamp > idx.Cases[j].Timestamp
	})
	return idx, nil
}

func readCase(dir string, maxBytes int) (CaseEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		return CaseEntry{}, err
	}
	var entry CaseEntry
	if err := json.Unmarshal(data, &entry.Summary); err != nil {
		return CaseEntry{}, errors.Wrap(err, "decode summary")
	}
	entry.Dir = dir
	entry.Files = make(map[string]FileContent, len(indexedFiles)+1)
	for _, name := range indexedFiles {
		content, truncated, err := readFileLimited(filepath.Join(dir, name), maxBytes)
		if err != nil {
			continue
		}
		entry.Files[name] = FileContent{Name: name, Content: content, Truncated: truncated}
	}
	if _, err := os.Stat(filepath.Join(dir, CaseArchiveName)); err == nil {
		entry.Files[CaseArchiveName] = FileContent{Name: CaseArchiveName, Content: "(binary)", Truncated: true}
	}
	return entry, nil
}

func readFileLimited(path string, maxBytes int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer util.CloseWithErr(f, "case file")
	if maxBytes <= 0 {
		data, err := io.ReadAll(f)
		return string(data), false, err
	}
	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return "", false, err
	}
	if len(data) > maxBytes {
		return string(data[:maxBytes]), true, nil
	}
	return string(data), false, nil
}

// WriteIndex writes idx as IndexName into dir.
func WriteIndex(dir string, idx Index) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, IndexName)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create index")
	}
	defer util.CloseWithErr(f, "index output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return path, errors.Wrap(enc.Encode(idx), "encode index")
}
