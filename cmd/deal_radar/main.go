package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/crm/factory"
	"github.com/iWorld-y/deal_radar/internal/engine"
	"github.com/iWorld-y/deal_radar/internal/explain"
	"github.com/iWorld-y/deal_radar/internal/logger"
	"github.com/iWorld-y/deal_radar/internal/render"
)

func main() {
	var (
		confPath = flag.String("conf", "configs/config.yaml", "config path")
		topN     = flag.Int("top", 0, "override report top_n")
		outPath  = flag.String("out", "", "override report output file")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *topN > 0 {
		cfg.Report.TopN = *topN
	}
	if *outPath != "" {
		cfg.Report.OutputFile = *outPath
	}

	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	logger.Log.Info("starting deal radar...")

	// Abandon in-flight explanation calls on Ctrl-C; already-computed scores
	// still make it into the report.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, cleanup, err := factory.NewSource(cfg)
	if err != nil {
		logger.Log.Fatalf("crm source init failed: %v", err)
	}
	defer cleanup()

	limiter := engine.NewLimiter(cfg.Concurrency)
	generator, err := explain.NewLLMGenerator(ctx, cfg.LLM, limiter)
	if err != nil {
		logger.Log.Fatalf("explanation generator init failed: %v", err)
	}

	eng := engine.New(cfg, source, generator)
	top, err := eng.Run(ctx, engine.RunOptions{
		TopN: cfg.Report.TopN,
		Progress: func(status string, progress int) {
			logger.Log.Infof("[%3d%%] %s", progress, status)
		},
	})
	if err != nil {
		logger.Log.Fatalf("pipeline run failed: %v", err)
	}

	if err := render.WriteHTML(top, cfg.Report.OutputFile); err != nil {
		logger.Log.Fatalf("failed to write report: %v", err)
	}
	logger.Log.Infof("✅ report written: %s (%d deals ranked)", cfg.Report.OutputFile, len(top.Deals))
}
