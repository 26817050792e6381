package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/crm/factory"
	"github.com/iWorld-y/deal_radar/internal/engine"
	"github.com/iWorld-y/deal_radar/internal/explain"
	"github.com/iWorld-y/deal_radar/internal/logger"
	"github.com/iWorld-y/deal_radar/internal/server"
	"github.com/iWorld-y/deal_radar/internal/service"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the service name.
	Name = "deal-radar"
	// Version is the service version.
	Version string

	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	klogger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		stdlog.Fatalf("failed to init logger: %v", err)
	}

	source, cleanup, err := factory.NewSource(cfg)
	if err != nil {
		stdlog.Fatalf("crm source init failed: %v", err)
	}
	defer cleanup()

	limiter := engine.NewLimiter(cfg.Concurrency)
	generator, err := explain.NewLLMGenerator(context.Background(), cfg.LLM, limiter)
	if err != nil {
		stdlog.Fatalf("explanation generator init failed: %v", err)
	}

	eng := engine.New(cfg, source, generator)
	svc := service.NewDealService(eng, generator, source, cfg.Report.TopN, klogger)
	httpSrv := server.NewHTTPServer(&cfg.Server, svc, klogger)

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(klogger),
		kratos.Server(httpSrv),
	)
	if err := app.Run(); err != nil {
		stdlog.Fatal(err)
	}
}
