package internal

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lychee-technology/appforge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buildTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return buildTime }

// testLibrary is a small library with predictable output.
func testLibrary(t *testing.T) *PatternLibrary {
	t.Helper()
	lib, err := LoadPatternLibrary(fstest.MapFS{
		"library.yaml": {Data: []byte(`
patterns:
  - {id: style-base, name: Base, category: utility}
  - {id: app-shell, name: Shell, category: layout, inputs: [{name: title, type: string, required: true}]}
  - id: card
    name: Card
    category: entity
    inputs: [{name: entityId, type: string, required: true}]
  - {id: broken, name: Broken, category: utility}
  - {id: no-html, name: Scripts only, category: utility}
`)},
		"style-base.css": {Data: []byte("body { margin: 0; }")},
		"app-shell.html": {Data: []byte("<html><title>{{.title}}</title><style>{{.styles}}</style><main>{{.content}}</main><script>{{.scripts}}</script></html>")},
		"app-shell.css":  {Data: []byte(".shell { display: block; }")},
		"card.html":      {Data: []byte(`<div class="card">{{.entityId}}:{{with .entity}}{{.name}}{{end}}</div>`)},
		"card.css":       {Data: []byte(".card { padding: 1rem; }")},
		"card.js":        {Data: []byte(`register("{{.entityId}}");`)},
		"broken.html":    {Data: []byte("{{index .items 3}}")},
		"no-html.js":     {Data: []byte("console.log({{json .appName}});")},
	})
	require.NoError(t, err)
	return lib
}

func TestAssembler_NilSpec(t *testing.T) {
	a := NewAssembler(testLibrary(t), AssemblerOptions{Now: fixedClock})

	result := a.Assemble(nil, nil)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"No specification to build"}, result.Errors)
	assert.Empty(t, result.HTML)
	assert.Equal(t, []string{}, result.Manifest.PatternsUsed)
}

func TestAssembler_MissingShell(t *testing.T) {
	a := NewAssembler(testLibrary(t), AssemblerOptions{ShellPatternID: "fancy-shell", Now: fixedClock})

	result := a.Assemble(todoSpecification(), []appforge.PatternReference{{PatternID: "card", TargetID: "task"}})
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `"fancy-shell"`)
}

func TestAssembler_OrdersAndDeduplicates(t *testing.T) {
	a := NewAssembler(testLibrary(t), AssemblerOptions{Now: fixedClock})

	refs := []appforge.PatternReference{
		{PatternID: "card", TargetID: "task", Config: map[string]any{"entityId": "task"}},
		{PatternID: "app-shell", TargetID: TargetRoot, Config: map[string]any{"title": "My Tasks"}},
		{PatternID: "card", TargetID: "task", Config: map[string]any{"entityId": "task"}},
		{PatternID: "card", TargetID: "note", Config: map[string]any{"entityId": "note"}},
		{PatternID: "style-base", TargetID: TargetGlobal},
	}

	result := a.Assemble(todoSpecification(), refs)
	require.True(t, result.Success, result.Errors)

	assert.Equal(t, []string{"style-base", "app-shell", "card"}, result.Manifest.PatternsUsed)
	assert.Equal(t, 4, result.Manifest.DeltasGenerated)
	assert.Equal(t, buildTime, result.Manifest.BuiltAt)
	assert.Equal(t, specIdentity(todoSpecification()), result.Manifest.SpecID)

	assert.Equal(t, "body { margin: 0; }\n.shell { display: block; }\n.card { padding: 1rem; }", result.CSS)
	assert.Equal(t, "register(\"task\");\n\nregister(\"note\");", result.JavaScript)

	assert.Contains(t, result.HTML, "<title>My Tasks</title>")
	assert.Equal(t, 1, strings.Count(result.HTML, `<div class="card">task:Task</div>`))
	assert.Contains(t, result.HTML, `<div class="card">note:</div>`)
	assert.Less(t, strings.Index(result.HTML, "task:Task"), strings.Index(result.HTML, "note:"))
}

func TestAssembler_ShellDefaultsWithoutReference(t *testing.T) {
	a := NewAssembler(testLibrary(t), AssemblerOptions{Now: fixedClock})

	result := a.Assemble(todoSpecification(), []appforge.PatternReference{{PatternID: "no-html", TargetID: TargetGlobal}})
	require.True(t, result.Success)
	assert.Contains(t, result.HTML, "<title>Todo</title>")
	assert.Contains(t, result.HTML, `console.log("Todo");`)
	assert.Contains(t, result.HTML, "<main></main>")
	assert.Equal(t, []string{"no-html"}, result.Manifest.PatternsUsed)
}

func TestAssembler_UnknownPatternIsSkipped(t *testing.T) {
	a := NewAssembler(testLibrary(t), AssemblerOptions{Now: fixedClock})

	result := a.Assemble(todoSpecification(), []appforge.PatternReference{
		{PatternID: "carousel", TargetID: "hero"},
		{PatternID: "card", TargetID: "task", Config: map[string]any{"entityId": "task"}},
	})
	require.True(t, result.Success)
	assert.Equal(t, []string{`Unknown pattern "carousel" for "hero" was skipped`}, result.Warnings)
	assert.Equal(t, []string{"card"}, result.Manifest.PatternsUsed)
}

func TestAssembler_RenderFailureIsContained(t *testing.T) {
	rec := recordTelemetry(t)
	a := NewAssembler(testLibrary(t), AssemblerOptions{Now: fixedClock})

	result := a.Assemble(todoSpecification(), []appforge.PatternReference{
		{PatternID: "broken", TargetID: "x", Config: map[string]any{"items": []any{"a"}}},
		{PatternID: "card", TargetID: "task", Config: map[string]any{"entityId": "task"}},
	})
	require.True(t, result.Success)
	assert.Contains(t, result.HTML, `class="af-render-error"`)
	assert.Contains(t, result.HTML, "task:Task")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "broken")

	failures := rec.named("appforge_render_failures")
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].labels["pattern"])
}

func TestAssembler_ConfigValidationWarnings(t *testing.T) {
	refs := []appforge.PatternReference{{PatternID: "card", TargetID: "task", Config: map[string]any{}}}

	strict := NewAssembler(testLibrary(t), AssemblerOptions{ValidateConfigs: true, Now: fixedClock})
	result := strict.Assemble(todoSpecification(), refs)
	require.True(t, result.Success)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Config for card (task)")

	lenient := NewAssembler(testLibrary(t), AssemblerOptions{Now: fixedClock})
	result = lenient.Assemble(todoSpecification(), refs)
	require.True(t, result.Success)
	assert.Empty(t, result.Warnings)
}

func TestAssembler_ShellRenderFailure(t *testing.T) {
	lib, err := LoadPatternLibrary(fstest.MapFS{
		"library.yaml":   {Data: []byte("patterns:\n  - {id: app-shell, category: layout}\n")},
		"app-shell.html": {Data: []byte("{{index .content 99}}")},
	})
	require.NoError(t, err)

	result := NewAssembler(lib, AssemblerOptions{Now: fixedClock}).Assemble(todoSpecification(), nil)
	assert.False(t, result.Success)
	assert.Empty(t, result.HTML)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "failed to render")
}

func TestBuildContext(t *testing.T) {
	spec := todoSpecification()
	globals, err := specGlobals(spec)
	require.NoError(t, err)

	ctx, err := buildContext(globals, appforge.PatternReference{
		PatternID: "card",
		TargetID:  "task",
		Config:    map[string]any{"entityId": "task", "appName": "Override"},
	}, spec)
	require.NoError(t, err)

	assert.Equal(t, "Override", ctx["appName"])
	assert.Equal(t, "Track tasks", ctx["appDescription"])
	assert.Equal(t, "Task", asObject(ctx["entity"])["name"])
	assert.Len(t, ctx["properties"], 2)
	assert.Len(t, ctx["views"], 2)

	_, hasEntity := globals["entity"]
	assert.False(t, hasEntity, "globals must not be mutated")

	empty, err := specGlobals(&appforge.Specification{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, empty["entities"])
}

func TestCompiler_QuotedIdentifiersStayInsideSelectors(t *testing.T) {
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	compiler := NewForgeCompiler(lib, appforge.DefaultConfig().Build, fixedClock)

	spec := &appforge.Specification{
		Version: "1.0.0",
		Meta:    appforge.SpecMeta{Name: "Quotes"},
		Entities: []appforge.Entity{{
			ID:         `note"s`,
			Name:       "Note",
			Properties: []appforge.Property{{Name: `say "hi"`, Type: appforge.PropertyTypeString}},
		}},
		Views: []appforge.View{
			{ID: `all"notes`, Name: "All", Type: appforge.ViewTypeList, Entity: `note"s`},
			{ID: `edit"note`, Name: "Edit", Type: appforge.ViewTypeForm, Entity: `note"s`},
			{ID: `one"note`, Name: "One", Type: appforge.ViewTypeDetail, Entity: `note"s`},
		},
	}

	result := compiler.Build(spec, compiler.MatchPatterns(spec))
	require.True(t, result.Success, result.Errors)
	assert.NotContains(t, result.HTML, "af-render-error")

	assert.Contains(t, result.JavaScript, `var viewId = "all\"notes";`)
	assert.Contains(t, result.JavaScript, `AppCore.byAttr("data-view-id", viewId)`)
	assert.NotRegexp(t, `querySelector\('[a-z]*\[data-`, result.JavaScript, "attribute selectors are built with byAttr")
	assert.Contains(t, result.HTML, `data-view-id="all&#34;notes"`)
}

func TestCompiler_TodoScenario(t *testing.T) {
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	compiler := NewForgeCompiler(lib, appforge.DefaultConfig().Build, fixedClock)

	spec := todoSpecification()
	result := compiler.Build(spec, compiler.MatchPatterns(spec))
	require.True(t, result.Success, result.Errors)
	assert.Empty(t, result.Warnings)

	assert.True(t, strings.HasPrefix(strings.TrimSpace(result.HTML), "<!DOCTYPE html>"))
	assert.Contains(t, result.HTML, "<title>Todo</title>")
	assert.Contains(t, result.HTML, "Tasks")
	assert.Contains(t, result.HTML, "task")
	assert.Contains(t, result.HTML, `id="view-tasks"`)
	assert.Contains(t, result.HTML, `data-nav-view="tasks"`)
	assert.Contains(t, result.HTML, result.CSS)
	assert.Contains(t, result.HTML, result.JavaScript)
	assert.NotContains(t, result.HTML, "<no value>")
	assert.NotContains(t, result.HTML, "af-render-error")

	for _, id := range []string{"style-base", "app-core", "app-shell", "navigation", "entity-card", "view-list", "view-form", "input-text", "input-checkbox"} {
		assert.Contains(t, result.Manifest.PatternsUsed, id)
	}
	assert.Equal(t, "style-base", result.Manifest.PatternsUsed[0])
}

func TestCompiler_Deterministic(t *testing.T) {
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	compiler := NewForgeCompiler(lib, appforge.DefaultConfig().Build, fixedClock)

	spec := todoSpecification()
	first := compiler.Build(spec, compiler.MatchPatterns(spec))
	second := compiler.Build(todoSpecification(), compiler.MatchPatterns(todoSpecification()))

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("builds differ (-first +second):\n%s", diff)
	}
}

func TestCompiler_RefusesInvalidSpec(t *testing.T) {
	rec := recordTelemetry(t)
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	compiler := NewForgeCompiler(lib, appforge.DefaultConfig().Build, fixedClock)

	spec := todoSpecification()
	spec.Entities[0].Properties = nil

	result := compiler.Build(spec, compiler.MatchPatterns(spec))
	assert.False(t, result.Success)
	assert.Empty(t, result.HTML)
	assert.Equal(t, []string{}, result.Manifest.PatternsUsed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "needs at least one property")

	latency := rec.named("appforge_build_latency_ms")
	require.Len(t, latency, 1)
	assert.Equal(t, "rejected", latency[0].labels["outcome"])
	assert.Empty(t, rec.named("appforge_build_fragments"))
}

func TestCompiler_SurfacesAtMostConfiguredErrors(t *testing.T) {
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	cfg := appforge.DefaultConfig().Build
	cfg.MaxSurfacedErrors = 2
	compiler := NewForgeCompiler(lib, cfg, fixedClock)

	result := compiler.Build(&appforge.Specification{}, nil)
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 2)
}

func TestCompiler_DanglingViewEntityStillBuilds(t *testing.T) {
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	compiler := NewForgeCompiler(lib, appforge.DefaultConfig().Build, fixedClock)

	spec := todoSpecification()
	spec.Views = append(spec.Views, appforge.View{ID: "projects", Name: "Projects", Type: appforge.ViewTypeList, Entity: "project"})

	validation := compiler.Validate(spec)
	require.True(t, validation.Valid)
	require.NotEmpty(t, validation.Warnings)

	result := compiler.Build(spec, compiler.MatchPatterns(spec))
	require.True(t, result.Success, result.Errors)
	assert.Contains(t, result.HTML, `id="view-projects"`)
	assert.NotContains(t, result.HTML, "af-render-error")
}

func TestCompiler_SuccessTelemetry(t *testing.T) {
	rec := recordTelemetry(t)
	lib, err := DefaultPatternLibrary()
	require.NoError(t, err)
	compiler := NewForgeCompiler(lib, appforge.DefaultConfig().Build, fixedClock)

	spec := todoSpecification()
	result := compiler.Build(spec, compiler.MatchPatterns(spec))
	require.True(t, result.Success)

	latency := rec.named("appforge_build_latency_ms")
	require.Len(t, latency, 1)
	assert.Equal(t, "success", latency[0].labels["outcome"])

	fragments := rec.named("appforge_build_fragments")
	require.Len(t, fragments, 1)
	assert.Equal(t, int64(result.Manifest.DeltasGenerated), fragments[0].value)
}
