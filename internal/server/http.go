package server

import (
	"embed"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/service"
)

//go:embed assets/*
var assets embed.FS

// NewHTTPServer exposes the latest report, the refresh trigger and the
// follow-up drafting endpoint, plus the embedded dashboard page.
func NewHTTPServer(c *config.ServerConfig, s *service.DealService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout != "" {
		if d, err := time.ParseDuration(c.HTTP.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)

	r := srv.Route("/api")
	r.GET("/report", func(ctx http.Context) error {
		top := s.Latest()
		if top == nil {
			return ctx.Result(nethttp.StatusOK, map[string]any{"ready": false})
		}
		return ctx.Result(nethttp.StatusOK, map[string]any{"ready": true, "report": top})
	})
	r.POST("/refresh", func(ctx http.Context) error {
		top, err := s.Refresh(ctx.Request().Context())
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, top)
	})
	r.POST("/deals/{id}/followup", func(ctx http.Context) error {
		id := ctx.Vars().Get("id")
		draft, err := s.FollowUp(ctx.Request().Context(), id)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, map[string]string{"deal_id": id, "draft": draft})
	})
	r.POST("/deals/{id}/task", func(ctx http.Context) error {
		id := ctx.Vars().Get("id")
		draft, err := s.CreateFollowUpTask(ctx.Request().Context(), id)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, map[string]string{"deal_id": id, "task": draft})
	})

	// Serve the dashboard page at "/".
	srv.HandleFunc("/", dashboardHandler(logger))

	return srv
}

// dashboardHandler serves the embedded dashboard page at "/" exactly and
// answers 404 for anything else.
func dashboardHandler(logger log.Logger) nethttp.HandlerFunc {
	h := log.NewHelper(logger)
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			nethttp.NotFound(w, r)
			return
		}
		content, err := assets.ReadFile("assets/dashboard.html")
		if err != nil {
			nethttp.Error(w, "dashboard unavailable", nethttp.StatusInternalServerError)
			return
		}
		if _, err := w.Write(content); err != nil {
			h.Warnf("write dashboard page: %v", err)
		}
	}
}
