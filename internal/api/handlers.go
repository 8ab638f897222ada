package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/pipeline"
	"github.com/hakim/cybershield/internal/report"
	"go.uber.org/zap"
)

// scanRequest accepts the target under either key
type scanRequest struct {
	Target string `json:"target"`
	URL    string `json:"url"`
	Preset string `json:"preset"`
}

func (s *Server) startHandler(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	target := req.Target
	if target == "" {
		target = req.URL
	}

	job, err := s.svc.Submit(c.Request.Context(), pipeline.SubmitRequest{
		Target:    target,
		Requester: requester(c),
		Preset:    req.Preset,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("scan started", zap.String("id", job.ID), zap.String("target", job.Target))
	c.JSON(http.StatusAccepted, gin.H{"message": "scan started", "scan": job})
}

func (s *Server) statusHandler(c *gin.Context) {
	job, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan": job})
}

func (s *Server) resultHandler(c *gin.Context) {
	result, err := s.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) cancelHandler(c *gin.Context) {
	job, err := s.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "scan cancelled", "scan": job})
}

func (s *Server) vulnerabilitiesHandler(c *gin.Context) {
	result, err := s.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vulnerabilities": result.Findings, "total": len(result.Findings)})
}

func (s *Server) historyHandler(c *gin.Context) {
	jobs, err := s.svc.List(c.Request.Context(), requester(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": jobs})
}

func (s *Server) latestHandler(c *gin.Context) {
	who := requester(c)
	results, err := s.svc.Latest(c.Request.Context(), who)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if who == models.AnonymousRequester {
		c.JSON(http.StatusOK, gin.H{"message": "Sign in to see all of your reports", "reports": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": results})
}

func (s *Server) reportHandler(c *gin.Context) {
	result, err := s.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": result})
}

func (s *Server) summaryHandler(c *gin.Context) {
	result, err := s.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": report.Summarize(result)})
}

var exportContentTypes = map[string]string{
	report.FormatJSON:     "application/json",
	report.FormatMarkdown: "text/markdown; charset=utf-8",
}

func (s *Server) exportHandler(c *gin.Context) {
	format := c.DefaultQuery("format", report.FormatJSON)
	contentType, ok := exportContentTypes[format]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", format)})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	job, err := s.svc.Get(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	result, err := s.svc.GetResult(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, job, result); err != nil {
		s.writeError(c, err)
		return
	}

	filename := report.ExportFilename(job.ID, format, s.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
