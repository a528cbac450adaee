package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// Outcome is the result kind of a conversational turn or build request.
type Outcome string

const (
	OutcomeSpecUpdated   Outcome = "spec_updated"
	OutcomeClarification Outcome = "clarification"
	OutcomeBuilt         Outcome = "built"
	OutcomeBuildBlocked  Outcome = "build_blocked"
	OutcomeBuildFailed   Outcome = "build_failed"
	OutcomeBusy          Outcome = "busy"
)

// Phase is the conversational stage derived from spec completeness.
type Phase string

const (
	PhaseDiscovery  Phase = "discovery"
	PhaseRefinement Phase = "refinement"
	PhaseReady      Phase = "ready"
)

const clarificationPrompt = "I couldn't turn that into an app specification. Could you describe the app, its data and the screens you need?"

// PhaseFor maps a validation result onto a conversational phase. Ready
// requires a valid spec regardless of completeness.
func PhaseFor(v appforge.ValidationResult) Phase {
	switch {
	case v.Completeness < 0.3:
		return PhaseDiscovery
	case v.Completeness < 0.7 || !v.Valid:
		return PhaseRefinement
	default:
		return PhaseReady
	}
}

// TurnResult describes the effect of applying one model response.
type TurnResult struct {
	Outcome    Outcome                   `json:"outcome"`
	Spec       *appforge.Specification   `json:"spec,omitempty"`
	Validation appforge.ValidationResult `json:"validation"`
	Phase      Phase                     `json:"phase"`
	Notes      []string                  `json:"notes,omitempty"`
	Question   string                    `json:"question,omitempty"`
}

// BuildOutcome describes the effect of a build request.
type BuildOutcome struct {
	Outcome Outcome               `json:"outcome"`
	BuildID string                `json:"buildId,omitempty"`
	Result  *appforge.BuildResult `json:"result,omitempty"`
	Errors  []string              `json:"errors,omitempty"`
}

// SessionState is a point-in-time view of a session.
type SessionState struct {
	SessionID   string                    `json:"sessionId"`
	Spec        *appforge.Specification   `json:"spec,omitempty"`
	Validation  appforge.ValidationResult `json:"validation"`
	Phase       Phase                     `json:"phase"`
	LatestBuild *appforge.BuildRecord     `json:"latestBuild,omitempty"`
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	MaxSurfacedErrors int
}

// Orchestrator drives one session: it replaces the spec on every parsed
// response and runs at most one build at a time.
type Orchestrator struct {
	sessionID string
	parser    appforge.SpecParser
	compiler  appforge.Compiler
	store     appforge.SpecStore
	exporter  appforge.Exporter
	opts      OrchestratorOptions

	building   atomic.Bool
	lastActive atomic.Int64
	mu         sync.Mutex
}

// NewOrchestrator creates an orchestrator. exporter may be nil, in which case Export fails.
func NewOrchestrator(sessionID string, parser appforge.SpecParser, compiler appforge.Compiler, store appforge.SpecStore, exporter appforge.Exporter, opts OrchestratorOptions) *Orchestrator {
	if opts.MaxSurfacedErrors <= 0 {
		opts.MaxSurfacedErrors = 3
	}
	o := &Orchestrator{
		sessionID: sessionID,
		parser:    parser,
		compiler:  compiler,
		store:     store,
		exporter:  exporter,
		opts:      opts,
	}
	o.touch()
	return o
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

func (o *Orchestrator) touch() {
	o.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session last handled a request.
func (o *Orchestrator) LastActive() time.Time {
	return time.Unix(0, o.lastActive.Load())
}

// ApplyResponse parses raw model output and replaces the session spec with
// the result. Unparseable text yields a clarification outcome and leaves
// the stored spec untouched; only storage failures return an error.
func (o *Orchestrator) ApplyResponse(ctx context.Context, text string) (*TurnResult, error) {
	o.touch()
	o.mu.Lock()
	defer o.mu.Unlock()

	spec, notes, err := o.parser.Parse(text)
	if err != nil {
		zap.S().Debugw("model response could not be parsed", "session", o.sessionID, "error", err)
		current, loadErr := o.loadSpec(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		validation := o.compiler.Validate(current)
		return &TurnResult{
			Outcome:    OutcomeClarification,
			Spec:       current,
			Validation: validation,
			Phase:      PhaseFor(validation),
			Question:   clarificationPrompt,
		}, nil
	}

	if err := o.store.SaveSpec(ctx, o.sessionID, spec); err != nil {
		return nil, err
	}

	validation := o.compiler.Validate(spec)
	zap.S().Debugw("specification updated",
		"session", o.sessionID,
		"valid", validation.Valid,
		"completeness", validation.Completeness,
	)
	return &TurnResult{
		Outcome:    OutcomeSpecUpdated,
		Spec:       spec,
		Validation: validation,
		Phase:      PhaseFor(validation),
		Notes:      notes,
	}, nil
}

// Build compiles the current spec. A build already in flight makes this
// call return the busy outcome immediately.
func (o *Orchestrator) Build(ctx context.Context) (*BuildOutcome, error) {
	o.touch()
	if !o.building.CompareAndSwap(false, true) {
		zap.S().Infow("build rejected while another build is running", "session", o.sessionID)
		return &BuildOutcome{
			Outcome: OutcomeBusy,
			Errors:  []string{appforge.NewBuildInProgressError().Message},
		}, nil
	}
	defer o.building.Store(false)

	spec, err := o.loadSpec(ctx)
	if err != nil {
		return nil, err
	}

	validation := o.compiler.Validate(spec)
	if !validation.Valid {
		return &BuildOutcome{
			Outcome: OutcomeBuildBlocked,
			Errors:  validation.ErrorMessages(o.opts.MaxSurfacedErrors),
		}, nil
	}

	result := o.compiler.Build(spec, o.compiler.MatchPatterns(spec))
	record, err := o.store.SaveBuild(ctx, o.sessionID, result)
	if err != nil {
		return nil, err
	}

	outcome := &BuildOutcome{Outcome: OutcomeBuilt, BuildID: record.ID, Result: result}
	if !result.Success {
		outcome.Outcome = OutcomeBuildFailed
		outcome.Errors = result.Errors
	}
	return outcome, nil
}

// Reset discards the session spec. Build history is kept.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.touch()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.DeleteSpec(ctx, o.sessionID)
}

// State returns the current spec, its validation and the latest build.
func (o *Orchestrator) State(ctx context.Context) (*SessionState, error) {
	o.touch()
	spec, err := o.loadSpec(ctx)
	if err != nil {
		return nil, err
	}
	validation := o.compiler.Validate(spec)

	latest, err := o.store.LatestBuild(ctx, o.sessionID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return &SessionState{
		SessionID:   o.sessionID,
		Spec:        spec,
		Validation:  validation,
		Phase:       PhaseFor(validation),
		LatestBuild: latest,
	}, nil
}

// Export writes the html of the latest successful build. An empty name is
// derived from the app name.
func (o *Orchestrator) Export(ctx context.Context, name string) (string, error) {
	o.touch()
	if o.exporter == nil {
		return "", appforge.NewExportError("no exporter configured", nil)
	}

	record, err := o.store.LatestBuild(ctx, o.sessionID)
	if err != nil {
		return "", err
	}
	if record.Result == nil || !record.Result.Success {
		return "", appforge.NewExportError("latest build did not succeed", nil).WithDetail("buildId", record.ID)
	}

	if name == "" {
		name = o.exportName(ctx)
	}
	location, err := o.exporter.Export(ctx, ensureHTMLName(name), []byte(record.Result.HTML))
	if err != nil {
		return "", err
	}
	zap.S().Infow("build exported", "session", o.sessionID, "buildId", record.ID, "location", location)
	return location, nil
}

// loadSpec returns the stored spec, or nil when the session has none yet.
func (o *Orchestrator) loadSpec(ctx context.Context) (*appforge.Specification, error) {
	spec, err := o.store.LoadSpec(ctx, o.sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return spec, nil
}

func (o *Orchestrator) exportName(ctx context.Context) string {
	if spec, err := o.loadSpec(ctx); err == nil && spec != nil {
		if k := kebabCase(spec.Meta.Name); k != "" {
			return k
		}
	}
	return "app"
}

func isNotFound(err error) bool {
	var fe *appforge.ForgeError
	return errors.As(err, &fe) && fe.Type == appforge.ErrorTypeNotFound
}

// ensureHTMLName appends .html unless name already ends with it.
func ensureHTMLName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".html") {
		return name
	}
	return name + ".html"
}
