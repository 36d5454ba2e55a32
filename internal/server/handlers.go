package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vpinel/docugraph/internal/jobs"
)

// handleUpload accepts a multipart document upload, saves it to the upload
// directory and starts ingestion in the background. The response carries the
// job id for progress polling; at that point the job record may not exist
// yet, clients treat an early 404 from the progress endpoint as "starting".
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	filename := filepath.Base(file.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.log.Error("create upload dir failed", "dir", s.cfg.UploadDir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}

	jobID := uuid.NewString()
	// Prefix with the job id so concurrent uploads of the same filename do
	// not clobber each other on disk.
	path := filepath.Join(s.cfg.UploadDir, jobID+"_"+filename)
	if err := c.SaveUploadedFile(file, path); err != nil {
		s.log.Error("save upload failed", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}

	s.launchRun(jobID, filename, path)
	s.log.Info("upload accepted", "job_id", jobID, "filename", filename, "size", file.Size)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":   jobID,
		"filename": filename,
	})
}

// handleProgress returns the current job record. Unknown and expired jobs
// are a 404; a broken job store degrades to an error-status record so
// polling clients stop cleanly instead of retrying forever.
func (s *Server) handleProgress(c *gin.Context) {
	jobID := c.Param("job_id")

	rec, err := s.deps.Tracker.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		s.log.Error("progress lookup failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusOK, jobs.Record{
			JobID:   jobID,
			Status:  jobs.StatusError,
			Message: "Progress tracking is unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
	Mode     string `json:"mode"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	answer, err := s.deps.Assistant.Ask(c.Request.Context(), req.Question, req.Mode)
	if err != nil {
		if strings.Contains(err.Error(), "unknown mode") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("question failed", "mode", req.Mode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer question"})
		return
	}

	c.JSON(http.StatusOK, answer)
}

// handleHealth pings the graph and job stores. Degraded still answers 200 so
// load balancers keep routing; the body says which dependency is down.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	check := func(p Pinger) string {
		if p == nil {
			return "unconfigured"
		}
		if err := p.Ping(ctx); err != nil {
			status = "degraded"
			return "down"
		}
		return "up"
	}

	neo4jState := check(s.deps.Graph)
	redisState := check(s.deps.JobStore)

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"neo4j":  neo4jState,
		"redis":  redisState,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Metrics.Snapshot())
}
