package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"limbofuzz/internal/config"
	"limbofuzz/internal/report"
	"limbofuzz/internal/uploader"
)

func main() {
	input := flag.String("input", "reports", "report directory holding case directories")
	output := flag.String("output", "web/public", "output directory for report.json")
	maxBytes := flag.Int("max-bytes", 64*1024, "max bytes to inline per case file")
	configPath := flag.String("config", "", "config file whose storage section publishes the index")
	flag.Parse()

	idx, err := report.BuildIndex(*input, *maxBytes)
	if err != nil {
		fail("build index: %v", err)
	}
	path, err := report.WriteIndex(*output, idx)
	if err != nil {
		fail("write index: %v", err)
	}
	fmt.Printf("indexed %d case(s) into %s\n", len(idx.Cases), path)

	if *configPath == "" {
		return
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("load config: %v", err)
	}
	up, err := uploader.New(cfg.Storage)
	if err != nil {
		fail("init uploader: %v", err)
	}
	if !up.Enabled() {
		return
	}
	loc, err := up.UploadDir(context.Background(), *output)
	if err != nil {
		fail("publish index: %v", err)
	}
	fmt.Printf("published index to %s\n", loc)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
