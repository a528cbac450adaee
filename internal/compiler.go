package internal

import (
	"context"
	"time"

	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// ForgeCompiler is the appforge.Compiler backed by a PatternLibrary.
type ForgeCompiler struct {
	lib         *PatternLibrary
	router      *PatternRouter
	assembler   *Assembler
	maxSurfaced int
	now         func() time.Time
}

var _ appforge.Compiler = (*ForgeCompiler)(nil)

// NewForgeCompiler wires the router and assembler for cfg. A nil now uses time.Now.
func NewForgeCompiler(lib *PatternLibrary, cfg appforge.BuildConfig, now func() time.Time) *ForgeCompiler {
	if now == nil {
		now = time.Now
	}
	return &ForgeCompiler{
		lib: lib,
		router: NewPatternRouter(RouterOptions{
			Theme:            cfg.Theme,
			StorageKeyPrefix: cfg.StorageKeyPrefix,
			ShellPatternID:   cfg.ShellPatternID,
		}),
		assembler: NewAssembler(lib, AssemblerOptions{
			ShellPatternID:  cfg.ShellPatternID,
			ValidateConfigs: cfg.ValidateConfigs,
			Now:             now,
		}),
		maxSurfaced: cfg.MaxSurfacedErrors,
		now:         now,
	}
}

// Library returns the pattern library the compiler renders from.
func (c *ForgeCompiler) Library() *PatternLibrary {
	return c.lib
}

func (c *ForgeCompiler) Validate(spec *appforge.Specification) appforge.ValidationResult {
	return ValidateSpec(spec)
}

func (c *ForgeCompiler) MatchPatterns(spec *appforge.Specification) []appforge.PatternReference {
	return c.router.MatchPatterns(spec)
}

// Build validates spec and assembles refs. An invalid spec is refused with
// its first validation messages and nothing is rendered.
func (c *ForgeCompiler) Build(spec *appforge.Specification, refs []appforge.PatternReference) *appforge.BuildResult {
	ctx := context.Background()
	start := time.Now()

	validation := ValidateSpec(spec)
	if !validation.Valid {
		zap.S().Infow("build refused for invalid specification", "errors", len(validation.Errors))
		EmitBuildLatency(ctx, "rejected", time.Since(start).Milliseconds())
		return &appforge.BuildResult{
			Success: false,
			Manifest: appforge.BuildManifest{
				BuiltAt:      c.now().UTC(),
				PatternsUsed: []string{},
			},
			Errors: validation.ErrorMessages(c.maxSurfaced),
		}
	}

	result := c.assembler.Assemble(spec, refs)

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	EmitBuildLatency(ctx, outcome, time.Since(start).Milliseconds())
	EmitFragmentCount(ctx, result.Manifest.DeltasGenerated)
	return result
}
