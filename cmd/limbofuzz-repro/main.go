package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"limbofuzz/internal/repro"
)

func main() {
	caseDir := flag.String("case_dir", "", "path to case directory")
	driver := flag.String("driver", "sqlite", "database/sql driver: sqlite or sqlite3")
	dsn := flag.String("dsn", ":memory:", "database DSN; file databases are recreated")
	timeout := flag.Duration("timeout", 10*time.Second, "per-statement timeout")
	flag.Parse()

	if *caseDir == "" {
		fmt.Fprintln(os.Stderr, "case_dir is required")
		flag.Usage()
		os.Exit(1)
	}
	opts := repro.Options{
		CaseDir: *caseDir,
		Driver:  *driver,
		DSN:     *dsn,
		Timeout: *timeout,
	}
	if err := repro.Run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "repro failed: %v\n", err)
		os.Exit(1)
	}
}
