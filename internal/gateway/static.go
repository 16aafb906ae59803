package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleServeRunFile implements GET /runs/{run_id}/{rel_path} (spec.md §6):
// a static file service rooted at the run directory that rejects path
// traversal and symlink escape.
func (g *Gateway) handleServeRunFile(c *gin.Context) {
	runID := c.Param("run_id")
	relPath := strings.TrimPrefix(c.Param("rel_path"), "/")

	run, err := g.store.Open(runID)
	if err != nil {
		writeError(c, err)
		return
	}

	resolved, err := resolveWithinRoot(run.Dir, relPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(resolved)
}

// resolveWithinRoot joins root and relPath, then verifies the result —
// after following symlinks — is still lexically inside root. Rejects both
// "../" escapes and symlinks planted inside a run directory pointing
// outside it.
func resolveWithinRoot(root, relPath string) (string, error) {
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(cleanRoot, relPath)
	if !isWithin(cleanRoot, joined) {
		return "", os.ErrNotExist
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	resolvedRoot, err := filepath.EvalSymlinks(cleanRoot)
	if err != nil {
		return "", err
	}
	if !isWithin(resolvedRoot, resolved) {
		return "", os.ErrNotExist
	}
	return resolved, nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
