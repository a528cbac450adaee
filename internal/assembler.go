package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	ShellPatternID  string
	ValidateConfigs bool
	Now             func() time.Time
}

// Assembler renders sorted pattern references into one document.
type Assembler struct {
	lib      *PatternLibrary
	renderer *TemplateRenderer
	opts     AssemblerOptions
}

func NewAssembler(lib *PatternLibrary, opts AssemblerOptions) *Assembler {
	if opts.ShellPatternID == "" {
		opts.ShellPatternID = "app-shell"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{lib: lib, renderer: NewTemplateRenderer(), opts: opts}
}

type assembly struct {
	html        []string
	css         *Set[string]
	js          []string
	patterns    *Set[string]
	deltas      int
	renderFails int
	warnings    []string
}

func (a *assembly) addCSS(fragment string) {
	if trimmed := strings.TrimSpace(fragment); trimmed != "" {
		a.css.Add(trimmed)
	}
}

func (a *assembly) addHTML(fragment string) {
	if trimmed := strings.TrimSpace(fragment); trimmed != "" {
		a.html = append(a.html, trimmed)
	}
}

func (a *assembly) addJS(fragment string) {
	if trimmed := strings.TrimSpace(fragment); trimmed != "" {
		a.js = append(a.js, trimmed)
	}
}

// Assemble sorts, deduplicates and renders refs, then wraps the result in the
// shell pattern. Only a missing spec or an unusable shell fails the build.
func (a *Assembler) Assemble(spec *appforge.Specification, refs []appforge.PatternReference) *appforge.BuildResult {
	result := &appforge.BuildResult{
		Manifest: appforge.BuildManifest{
			BuiltAt:      a.opts.Now().UTC(),
			PatternsUsed: []string{},
		},
	}
	if spec == nil {
		result.Errors = []string{"No specification to build"}
		return result
	}
	result.Manifest.SpecID = specIdentity(spec)

	shell, ok := a.lib.compiledPattern(a.opts.ShellPatternID)
	if !ok || shell.html == nil {
		zap.S().Warnw("shell pattern unavailable", "pattern", a.opts.ShellPatternID)
		result.Errors = []string{fmt.Sprintf("Shell pattern %q is not available", a.opts.ShellPatternID)}
		return result
	}

	globals, err := specGlobals(spec)
	if err != nil {
		result.Errors = []string{fmt.Sprintf("Specification could not be prepared for rendering: %v", err)}
		return result
	}

	asm := &assembly{css: NewSet[string](), patterns: NewSet[string]()}
	rendered := NewSet[string]()
	var shellCtx map[string]any

	for _, ref := range SortReferences(refs) {
		key := ref.PatternID + "\x00" + ref.TargetID
		if rendered.Contains(key) {
			continue
		}

		compiled, ok := a.lib.compiledPattern(ref.PatternID)
		if !ok {
			zap.S().Warnw("skipping unknown pattern", "pattern", ref.PatternID, "target", ref.TargetID)
			asm.warnings = append(asm.warnings, fmt.Sprintf("Unknown pattern %q for %q was skipped", ref.PatternID, ref.TargetID))
			continue
		}
		rendered.Add(key)

		if a.opts.ValidateConfigs {
			if err := a.lib.CheckConfig(ref.PatternID, ref.Config); err != nil {
				zap.S().Warnw("pattern config does not match declared inputs", "pattern", ref.PatternID, "target", ref.TargetID, "error", err)
				asm.warnings = append(asm.warnings, fmt.Sprintf("Config for %s (%s) does not match its inputs: %v", ref.PatternID, ref.TargetID, err))
			}
		}

		ctx, err := buildContext(globals, ref, spec)
		if err != nil {
			zap.S().Warnw("failed to build pattern context", "pattern", ref.PatternID, "target", ref.TargetID, "error", err)
			asm.warnings = append(asm.warnings, fmt.Sprintf("Could not prepare %s (%s): %v", ref.PatternID, ref.TargetID, err))
			continue
		}

		asm.patterns.Add(ref.PatternID)
		asm.deltas++

		isShell := ref.PatternID == a.opts.ShellPatternID
		if isShell {
			if shellCtx == nil {
				shellCtx = ctx
			}
		} else {
			asm.addHTML(a.renderSection(asm, ref, SectionHTML, compiled, ctx))
		}
		asm.addCSS(a.renderSection(asm, ref, SectionCSS, compiled, ctx))
		asm.addJS(a.renderSection(asm, ref, SectionJS, compiled, ctx))
	}

	result.CSS = strings.Join(asm.css.Values(), "\n")
	result.JavaScript = strings.Join(asm.js, "\n\n")
	content := strings.Join(asm.html, "\n")

	if shellCtx == nil {
		shellCtx = copyContext(globals)
	}
	if _, ok := shellCtx["title"]; !ok {
		shellCtx["title"] = spec.Meta.Name
	}
	if _, ok := shellCtx["description"]; !ok {
		shellCtx["description"] = spec.Meta.Description
	}
	shellCtx["content"] = content
	shellCtx["styles"] = result.CSS
	shellCtx["scripts"] = result.JavaScript

	doc, err := a.renderer.Render(a.opts.ShellPatternID, SectionHTML, shell.html, shellCtx)
	if err != nil {
		zap.S().Warnw("shell render failed", "pattern", a.opts.ShellPatternID, "error", err)
		result.Errors = []string{fmt.Sprintf("Shell pattern %q failed to render: %v", a.opts.ShellPatternID, err)}
		result.Warnings = asm.warnings
		return result
	}

	result.Success = true
	result.HTML = doc
	result.Warnings = asm.warnings
	result.Manifest.PatternsUsed = asm.patterns.Values()
	result.Manifest.DeltasGenerated = asm.deltas

	zap.S().Infow("build assembled",
		"specId", result.Manifest.SpecID,
		"patterns", asm.patterns.Len(),
		"fragments", asm.deltas,
		"renderFailures", asm.renderFails,
	)
	return result
}

func (a *Assembler) renderSection(asm *assembly, ref appforge.PatternReference, section string, compiled *compiledPattern, ctx map[string]any) string {
	out, err := a.renderer.RenderOrMark(ref.PatternID, ref.TargetID, section, compiled.section(section), ctx)
	if err != nil {
		asm.renderFails++
		EmitRenderFailure(context.Background(), ref.PatternID)
		asm.warnings = append(asm.warnings, fmt.Sprintf("Could not render %s of %s (%s)", section, ref.PatternID, ref.TargetID))
	}
	return out
}

// specGlobals returns the spec-level values every pattern context starts from.
func specGlobals(spec *appforge.Specification) (map[string]any, error) {
	entities, err := toJSONValue(spec.Entities)
	if err != nil {
		return nil, err
	}
	views, err := toJSONValue(spec.Views)
	if err != nil {
		return nil, err
	}
	actions, err := toJSONValue(spec.Actions)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"appName":        spec.Meta.Name,
		"appDescription": spec.Meta.Description,
		"version":        spec.Version,
		"entities":       orEmptyList(entities),
		"views":          orEmptyList(views),
		"actions":        orEmptyList(actions),
	}, nil
}

func orEmptyList(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}

func copyContext(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+8)
	for k, v := range src {
		out[k] = v
	}
	return out
}

// buildContext merges globals, the reference config and the resolved entity,
// later sources overriding earlier ones.
func buildContext(globals map[string]any, ref appforge.PatternReference, spec *appforge.Specification) (map[string]any, error) {
	ctx := copyContext(globals)

	cfg, err := toJSONValue(ref.Config)
	if err != nil {
		return nil, err
	}
	for k, v := range asObject(cfg) {
		ctx[k] = v
	}

	entityID, _ := ref.Config["entityId"].(string)
	if entity := spec.Entity(entityID); entity != nil {
		resolved, err := toJSONValue(entity)
		if err != nil {
			return nil, err
		}
		props, err := toJSONValue(entity.UniqueProperties())
		if err != nil {
			return nil, err
		}
		ctx["entity"] = resolved
		ctx["properties"] = orEmptyList(props)
	}
	return ctx, nil
}
