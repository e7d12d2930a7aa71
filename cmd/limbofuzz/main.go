package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"limbofuzz/internal/config"
	"limbofuzz/internal/runner"
	"limbofuzz/internal/uploader"
	"limbofuzz/internal/util"

	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	seed := flag.Int64("seed", 0, "random seed; overrides the config when non-zero")
	iterations := flag.Int("iterations", -1, "oracle runs per worker, 0 runs until interrupted; overrides the config when set")
	oracleName := flag.String("oracle", "", "run only this oracle")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *iterations >= 0 {
		cfg.Iterations = *iterations
	}
	if *oracleName != "" {
		cfg.Oracles.Only = *oracleName
		cfg.Adaptive.Enabled = false
	}

	closer, err := util.SetupLogFile(cfg.Logging.LogFile, cfg.Logging.LogMaxSizeMB, cfg.Logging.LogMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer util.CloseWithErr(closer, "log file")

	util.Infof("starting limbofuzz with %d worker(s)", cfg.Workers)
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	up, err := uploader.New(cfg.Storage)
	if err != nil {
		util.Errorf("failed to init uploader: %v", err)
		os.Exit(1)
	}
	r, err := runner.New(cfg, up)
	if err != nil {
		util.Errorf("failed to init runner: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := r.Run(ctx); err != nil {
		util.Errorf("run failed: %v", err)
		os.Exit(1)
	}
	if n := r.Findings(); n > 0 {
		util.Highlightf("%d finding(s) written to %s", n, cfg.Logging.ReportDir)
		os.Exit(2)
	}
}
