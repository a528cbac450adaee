package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// handleParse handles POST /api/v1/specs/parse
func (s *Server) handleParse(c *gin.Context) {
	var req textRequest
	if !bindJSON(c, &req) {
		return
	}

	spec, notes, err := s.parser.Parse(req.Text)
	if err != nil {
		writeForgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"spec":       spec,
		"notes":      notes,
		"validation": s.compiler.Validate(spec),
	})
}

// handleValidate handles POST /api/v1/specs/validate
func (s *Server) handleValidate(c *gin.Context) {
	var spec appforge.Specification
	if !bindJSON(c, &spec) {
		return
	}
	c.JSON(http.StatusOK, s.compiler.Validate(&spec))
}

// handleMatch handles POST /api/v1/specs/match
func (s *Server) handleMatch(c *gin.Context) {
	var spec appforge.Specification
	if !bindJSON(c, &spec) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": s.compiler.MatchPatterns(&spec)})
}

// handleBuild handles POST /api/v1/specs/build. Without explicit patterns
// the router's references are used. ?format=html returns the document itself.
func (s *Server) handleBuild(c *gin.Context) {
	var req buildRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Spec == nil {
		writeError(c, http.StatusBadRequest, "spec is required")
		return
	}

	refs := req.Patterns
	if len(refs) == 0 {
		refs = s.compiler.MatchPatterns(req.Spec)
	}
	result := s.compiler.Build(req.Spec, refs)

	if !result.Success {
		status := http.StatusUnprocessableEntity
		if s.compiler.Validate(req.Spec).Valid {
			status = http.StatusInternalServerError
		}
		c.JSON(status, result)
		return
	}
	if wantsHTML(c) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(result.HTML))
		return
	}
	c.JSON(http.StatusOK, result)
}

type patternSummary struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Category     appforge.PatternCategory `json:"category"`
	Description  string                   `json:"description"`
	Inputs       []appforge.PatternInput  `json:"inputs"`
	Dependencies []string                 `json:"dependencies"`
}

// handleListPatterns handles GET /api/v1/patterns
func (s *Server) handleListPatterns(c *gin.Context) {
	ids := s.library.ListPatterns()
	out := make([]patternSummary, 0, len(ids))
	for _, id := range ids {
		p, ok := s.library.GetPattern(id)
		if !ok {
			continue
		}
		out = append(out, patternSummary{
			ID:           p.ID,
			Name:         p.Name,
			Category:     p.Category,
			Description:  p.Description,
			Inputs:       p.Inputs,
			Dependencies: p.Dependencies,
		})
	}
	c.JSON(http.StatusOK, gin.H{"patterns": out})
}

// handleGetPattern handles GET /api/v1/patterns/:id
func (s *Server) handleGetPattern(c *gin.Context) {
	p, ok := s.library.GetPattern(c.Param("id"))
	if !ok {
		writeForgeError(c, appforge.NewPatternNotFoundError(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, p)
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(c *gin.Context) {
	session := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"sessionId": session.SessionID()})
}

// handleTurn handles POST /api/v1/sessions/:id/turns
func (s *Server) handleTurn(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		writeForgeError(c, err)
		return
	}
	var req textRequest
	if !bindJSON(c, &req) {
		return
	}

	turn, err := session.ApplyResponse(c.Request.Context(), req.Text)
	if err != nil {
		zap.S().Errorw("failed to apply turn", "session", session.SessionID(), "error", err)
		writeForgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

// handleSessionBuild handles POST /api/v1/sessions/:id/build
func (s *Server) handleSessionBuild(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		writeForgeError(c, err)
		return
	}

	outcome, err := session.Build(c.Request.Context())
	if err != nil {
		zap.S().Errorw("session build failed", "session", session.SessionID(), "error", err)
		writeForgeError(c, err)
		return
	}
	if wantsHTML(c) && outcome.Result != nil && outcome.Result.Success {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(outcome.Result.HTML))
		return
	}
	c.JSON(statusForOutcome(outcome.Outcome), outcome)
}

// handleGetSession handles GET /api/v1/sessions/:id
func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		writeForgeError(c, err)
		return
	}
	state, err := session.State(c.Request.Context())
	if err != nil {
		writeForgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleDeleteSession handles DELETE /api/v1/sessions/:id
func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeForgeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleExport handles POST /api/v1/sessions/:id/export
func (s *Server) handleExport(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		writeForgeError(c, err)
		return
	}
	var req exportRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	location, err := session.Export(c.Request.Context(), req.Name)
	if err != nil {
		writeForgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(c.Request.Context()); err != nil {
			zap.S().Warnw("health check failed", "component", name, "error", err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"patterns": len(s.library.ListPatterns()),
		"checks":   checks,
	})
}
