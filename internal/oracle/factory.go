package oracle

import (
	"slices"

	"limbofuzz/internal/config"

	"github.com/pkg/errors"
)

// Oracle names accepted by New.
const (
	NamePQS               = "PQS"
	NameNoREC             = "NoREC"
	NameAggregate         = "AGGREGATE"
	NameWhere             = "WHERE"
	NameDistinct          = "DISTINCT"
	NameGroupBy           = "GROUP_BY"
	NameHaving            = "HAVING"
	NameFuzzer            = "FUZZER"
	NameQueryPartitioning = "QUERY_PARTITIONING"
	NameCODDTest          = "CODDTest"
)

// Names lists every oracle in selection order.
var Names = []string{
	NamePQS, NameNoREC, NameAggregate, NameWhere, NameDistinct,
	NameGroupBy, NameHaving, NameFuzzer, NameQueryPartitioning, NameCODDTest,
}

// New returns the oracle registered under name.
func New(name string, cfg config.Config) (Oracle, error) {
	maxRows := cfg.Oracles.MaxRows
	switch name {
	case NamePQS:
		return PQS{MaxInserts: cfg.MaxInserts}, nil
	case NameNoREC:
		return NoREC{MaxRows: maxRows}, nil
	case NameAggregate:
		return TLPAggregate{}, nil
	case NameWhere:
		return TLPWhere{MaxRows: maxRows}, nil
	case NameDistinct:
		return TLPDistinct{MaxRows: maxRows}, nil
	case NameGroupBy:
		return TLPGroupBy{MaxRows: maxRows}, nil
	case NameHaving:
		return TLPHaving{MaxRows: maxRows}, nil
	case NameFuzzer:
		return Fuzzer{}, nil
	case NameQueryPartitioning:
		return NewQueryPartitioning(maxRows), nil
	case NameCODDTest:
		return CODDTest{Config: cfg.Oracles.CODDTest}, nil
	}
	return nil, errors.Errorf("unknown oracle %q", name)
}

// RequiresRows reports whether the oracle needs every table to hold at
// least one row.
func RequiresRows(name string) bool {
	return name == NamePQS || name == NameCODDTest
}

// Weight returns the configured selection weight of an oracle.
func Weight(name string, w config.OracleWeights) int {
	switch name {
	case NamePQS:
		return w.PQS
	case NameNoREC:
		return w.NoREC
	case NameAggregate:
		return w.Aggregate
	case NameWhere:
		return w.Where
	case NameDistinct:
		return w.Distinct
	case NameGroupBy:
		return w.GroupBy
	case NameHaving:
		return w.Having
	case NameFuzzer:
		return w.Fuzzer
	case NameQueryPartitioning:
		return w.QueryPartitioning
	case NameCODDTest:
		return w.CODDTest
	}
	return 0
}

// Enabled returns the oracles to run: the one named by Only, or all with a
// positive weight.
func Enabled(cfg config.OracleConfig) ([]string, error) {
	if cfg.Only != "" {
		if !slices.Contains(Names, cfg.Only) {
			return nil, errors.Errorf("unknown oracle %q", cfg.Only)
		}
		return []string{cfg.Only}, nil
	}
	var out []string
	for _, name := range Names {
		if Weight(name, cfg.Weights) > 0 {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no oracle enabled")
	}
	return out, nil
}
