package appforge

import (
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeExport     ErrorType = "export"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeBusy       ErrorType = "busy"
	ErrorTypeInternal   ErrorType = "internal"
)

// ForgeError is the error type returned across package boundaries.
type ForgeError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ForgeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to a ForgeError
func (e *ForgeError) WithDetails(details map[string]any) *ForgeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to a ForgeError
func (e *ForgeError) WithDetail(key string, value any) *ForgeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *ForgeError) WithCause(cause error) *ForgeError {
	e.Cause = cause
	return e
}

func (e *ForgeError) WithField(field string) *ForgeError {
	e.Field = field
	return e
}

// Error codes
const (
	// Validation errors. Any of these makes a specification unbuildable.
	ErrCodeNoSpec            = "NO_SPEC"
	ErrCodeMissingName       = "MISSING_NAME"
	ErrCodeNoEntities        = "NO_ENTITIES"
	ErrCodeNoViews           = "NO_VIEWS"
	ErrCodeMissingEntityName = "MISSING_ENTITY_NAME"
	ErrCodeNoProperties      = "NO_PROPERTIES"
	ErrCodeMissingViewName   = "MISSING_VIEW_NAME"
	ErrCodeMissingActionName = "MISSING_ACTION_NAME"
	ErrCodeMissingTrigger    = "MISSING_TRIGGER"
	ErrCodeDuplicateEntityID = "DUPLICATE_ENTITY_ID"

	// Validation warnings
	ErrCodeDuplicateProperty   = "DUPLICATE_PROPERTY"
	ErrCodeInvalidRelationship = "INVALID_RELATIONSHIP"
	ErrCodeInvalidViewEntity   = "INVALID_VIEW_ENTITY"
	ErrCodeMissingDescription  = "MISSING_DESCRIPTION"
	ErrCodeNoPatterns          = "NO_PATTERNS"

	// Parse errors
	ErrCodeEmptyInput  = "EMPTY_INPUT"
	ErrCodeParseFailed = "PARSE_FAILED"

	// Build errors
	ErrCodePatternNotFound   = "PATTERN_NOT_FOUND"
	ErrCodeRenderFailed      = "RENDER_FAILED"
	ErrCodeShellUnavailable  = "SHELL_UNAVAILABLE"
	ErrCodeSpecNotBuildable  = "SPEC_NOT_BUILDABLE"
	ErrCodeBuildInProgress   = "BUILD_IN_PROGRESS"
	ErrCodeDependencyCycle   = "DEPENDENCY_CYCLE"
	ErrCodeMissingDependency = "MISSING_DEPENDENCY"

	// Storage and export errors
	ErrCodeSpecNotFound    = "SPEC_NOT_FOUND"
	ErrCodeBuildNotFound   = "BUILD_NOT_FOUND"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeStorageFailed   = "STORAGE_FAILED"
	ErrCodeExportFailed    = "EXPORT_FAILED"

	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ============================================================================
// ForgeError Constructors
// ============================================================================

// NewForgeError creates a new ForgeError
func NewForgeError(errorType ErrorType, code, message string) *ForgeError {
	return &ForgeError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(code, field, message string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewParseError creates an error for model output that could not be read as a specification.
func NewParseError(message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeParse,
		Code:    ErrCodeParseFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewNotBuildableError reports the first validation errors that block a build.
func NewNotBuildableError(messages []string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeSpecNotBuildable,
		Message: "specification is not ready to build",
		Details: map[string]any{"errors": messages},
	}
}

func NewPatternNotFoundError(patternID string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodePatternNotFound,
		Message: fmt.Sprintf("pattern %q not found", patternID),
		Details: map[string]any{"patternId": patternID},
	}
}

// NewRenderError wraps a template evaluation failure.
func NewRenderError(patternID, section string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeRender,
		Code:    ErrCodeRenderFailed,
		Message: fmt.Sprintf("failed to render %s template of pattern %q", section, patternID),
		Cause:   cause,
		Details: map[string]any{"patternId": patternID, "section": section},
	}
}

func NewBuildInProgressError() *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeBusy,
		Code:    ErrCodeBuildInProgress,
		Message: "a build is already running",
		Details: make(map[string]any),
	}
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeStorage,
		Code:    ErrCodeStorageFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewSpecNotFoundError reports a missing stored specification for a session.
func NewSpecNotFoundError(sessionID string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeSpecNotFound,
		Message: "specification not found",
		Details: map[string]any{"sessionId": sessionID},
	}
}

func NewSessionNotFoundError(sessionID string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeSessionNotFound,
		Message: "session not found",
		Details: map[string]any{"sessionId": sessionID},
	}
}

func NewBuildNotFoundError(sessionID string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeBuildNotFound,
		Message: "no successful build to export",
		Details: map[string]any{"sessionId": sessionID},
	}
}

// NewExportError creates an export error
func NewExportError(message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeExport,
		Code:    ErrCodeExportFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}
