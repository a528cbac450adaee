package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/internal"
	"go.uber.org/zap"
)

// APIResponse is the standard error response format
type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// textRequest is the body of endpoints that take raw model output.
type textRequest struct {
	Text string `json:"text"`
}

type buildRequest struct {
	Spec     *appforge.Specification     `json:"spec"`
	Patterns []appforge.PatternReference `json:"patterns,omitempty"`
}

type exportRequest struct {
	Name string `json:"name"`
}

// writeError writes an error response
func writeError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, APIResponse{Success: false, Error: message})
}

// writeForgeError maps err onto a status code and writes it. ForgeError
// codes and details are passed through.
func writeForgeError(c *gin.Context, err error) {
	var fe *appforge.ForgeError
	if !errors.As(err, &fe) {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.AbortWithStatusJSON(statusForError(fe), APIResponse{
		Success: false,
		Error:   fe.Message,
		Code:    fe.Code,
		Details: fe.Details,
	})
}

func statusForError(fe *appforge.ForgeError) int {
	switch fe.Type {
	case appforge.ErrorTypeValidation, appforge.ErrorTypeParse:
		return http.StatusUnprocessableEntity
	case appforge.ErrorTypeNotFound:
		return http.StatusNotFound
	case appforge.ErrorTypeBusy:
		return http.StatusConflict
	case appforge.ErrorTypeStorage:
		return http.StatusServiceUnavailable
	case appforge.ErrorTypeExport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func statusForOutcome(outcome internal.Outcome) int {
	switch outcome {
	case internal.OutcomeBuildBlocked:
		return http.StatusUnprocessableEntity
	case internal.OutcomeBusy:
		return http.StatusConflict
	case internal.OutcomeBuildFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// bindJSON decodes the request body into v and writes a 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return false
	}
	return true
}

// wantsHTML reports whether the caller asked for the raw document.
func wantsHTML(c *gin.Context) bool {
	return strings.EqualFold(c.Query("format"), "html")
}

// logTelemetry forwards build measurements to the debug log.
func logTelemetry(_ context.Context, name string, labels map[string]string, value any) {
	zap.S().Debugw("telemetry", "metric", name, "labels", labels, "value", value)
}
