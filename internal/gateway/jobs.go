package gateway

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/config"
	"github.com/saladfingers379/RIS-SIONNA/internal/scheduler"
)

// handleListSimJobs implements GET /api/jobs.
func (g *Gateway) handleListSimJobs(c *gin.Context) {
	c.JSON(200, gin.H{"jobs": g.scheduler.List(scheduler.KindSim)})
}

// handlePostSimJob implements POST /api/jobs: decodes/validates the body
// as RunOptions, then enqueues a sim job (spec.md §6).
func (g *Gateway) handlePostSimJob(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.KindInvalidConfig, "read request body", err))
		return
	}
	opts, err := config.ParseRunOptions(body)
	if err != nil {
		writeError(c, err)
		return
	}

	payload := map[string]any{
		"profile":     opts.Profile,
		"base_config": opts.BaseConfig,
		"preset":      opts.Preset,
		"runtime":     opts.Runtime,
		"simulation":  opts.Simulation,
		"scene":       opts.Scene,
		"ris":         opts.Ris,
		"radio_map":   opts.RadioMap,
	}
	job, err := g.scheduler.Submit(scheduler.Submission{Kind: scheduler.KindSim, Action: "run", Payload: payload})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"run_id": job.RunID, "job_id": job.JobID})
}

// handleListRisJobs implements GET /api/ris/jobs.
func (g *Gateway) handleListRisJobs(c *gin.Context) {
	c.JSON(200, gin.H{"jobs": g.scheduler.List(scheduler.KindRis)})
}

// handlePostRisJob implements POST /api/ris/jobs.
func (g *Gateway) handlePostRisJob(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.KindInvalidConfig, "read request body", err))
		return
	}
	req, err := config.ParseRisJobRequest(body)
	if err != nil {
		writeError(c, err)
		return
	}

	payload := map[string]any{
		"config_path": req.ConfigPath,
		"config_data": req.ConfigData,
		"ref":         req.Ref,
	}
	job, err := g.scheduler.Submit(scheduler.Submission{
		Kind:    scheduler.KindRis,
		Action:  req.Action,
		Mode:    req.Mode,
		Payload: payload,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"run_id": job.RunID, "job_id": job.JobID})
}

// rateLimited wraps a submission handler with the §A domain-stack
// golang.org/x/time/rate limiter; a nil limiter (SubmitRateLimit unset)
// passes every request through.
func (g *Gateway) rateLimited(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.limiter != nil && !g.limiter.Allow() {
			c.JSON(429, gin.H{"error": "submission rate limit exceeded"})
			c.Abort()
			return
		}
		handler(c)
	}
}
