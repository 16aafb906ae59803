// Package gateway implements JobGateway (spec.md §4's JobGateway /
// §6 "EXTERNAL INTERFACES"): the HTTP surface that accepts job
// submissions, serves run listings/progress, and streams artifact files,
// fronted by gin.
package gateway

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
	"github.com/saladfingers379/RIS-SIONNA/internal/scheduler"
	"github.com/saladfingers379/RIS-SIONNA/pkg/metrics"
)

// Config configures a Gateway.
type Config struct {
	ConfigsDir string // directory of base config YAML files served by GET /api/configs
	// SubmitRateLimit bounds POST /api/jobs + POST /api/ris/jobs combined;
	// zero disables limiting.
	SubmitRateLimit rate.Limit
	SubmitBurst     int
}

// Gateway wires RunStore, ProgressJournal, and Scheduler behind gin routes.
type Gateway struct {
	store     *runstore.Store
	journal   *progress.Journal
	scheduler *scheduler.Scheduler
	metrics   *metrics.Registry
	log       *slog.Logger
	cfg       Config
	limiter   *rate.Limiter
}

// New constructs a Gateway. metrics may be nil to disable /metrics wiring.
func New(store *runstore.Store, journal *progress.Journal, sched *scheduler.Scheduler, m *metrics.Registry, log *slog.Logger, cfg Config) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.SubmitRateLimit > 0 {
		limiter = rate.NewLimiter(cfg.SubmitRateLimit, cfg.SubmitBurst)
	}
	return &Gateway{store: store, journal: journal, scheduler: sched, metrics: m, log: log, cfg: cfg, limiter: limiter}
}

// Register attaches every route of spec.md §6 onto router.
func (g *Gateway) Register(router *gin.Engine) {
	router.GET("/api/configs", g.handleListConfigs)
	router.GET("/api/runs", g.handleListRuns)
	router.GET("/api/run/:run_id", g.handleGetRun)
	router.GET("/api/progress/:run_id", g.handleGetProgress)
	router.GET("/api/progress/:run_id/ws", g.handleProgressWebSocket)
	router.GET("/api/jobs", g.handleListSimJobs)
	router.POST("/api/jobs", g.rateLimited(g.handlePostSimJob))
	router.GET("/api/ris/jobs", g.handleListRisJobs)
	router.POST("/api/ris/jobs", g.rateLimited(g.handlePostRisJob))
	router.GET("/runs/:run_id/*rel_path", g.handleServeRunFile)

	if g.metrics != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler()))
	}
}

// handleListConfigs implements GET /api/configs: every *.yaml/*.yml file
// directly under ConfigsDir, read whole.
func (g *Gateway) handleListConfigs(c *gin.Context) {
	type configEntry struct {
		Name string `json:"name"`
		Path string `json:"path"`
		Data string `json:"data"`
	}
	var configs []configEntry
	if g.cfg.ConfigsDir != "" {
		entries, err := os.ReadDir(g.cfg.ConfigsDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				ext := filepath.Ext(e.Name())
				if ext != ".yaml" && ext != ".yml" {
					continue
				}
				path := filepath.Join(g.cfg.ConfigsDir, e.Name())
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				configs = append(configs, configEntry{Name: e.Name(), Path: path, Data: string(data)})
			}
		}
	}
	c.JSON(200, gin.H{"configs": configs})
}
