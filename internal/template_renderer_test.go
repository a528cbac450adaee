package internal

import (
	"strings"
	"testing"

	"github.com/lychee-technology/appforge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSection(t *testing.T, body string) *compiledPattern {
	t.Helper()
	c, err := compilePattern(&appforge.Pattern{ID: "test", Template: appforge.PatternTemplate{HTML: body}})
	require.NoError(t, err)
	return c
}

func TestTemplateRenderer_Render(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		data map[string]any
		want string
	}{
		{name: "plain substitution", tpl: "<h1>{{.title}}</h1>", data: map[string]any{"title": "Tasks"}, want: "<h1>Tasks</h1>"},
		{name: "conditional", tpl: "{{if .show}}yes{{else}}no{{end}}", data: map[string]any{"show": false}, want: "no"},
		{name: "loop with first", tpl: "{{range $i, $x := .items}}{{if not (first $i)}} | {{end}}{{$x}}{{end}}", data: map[string]any{"items": []any{"a", "b"}}, want: "a | b"},
		{name: "loop with last", tpl: "{{range $i, $x := .items}}{{$x}}{{if not (last $i $.items)}},{{end}}{{end}}", data: map[string]any{"items": []any{"a", "b", "c"}}, want: "a,b,c"},
		{name: "nested field", tpl: "{{.entity.name}}", data: map[string]any{"entity": map[string]any{"name": "Task"}}, want: "Task"},
		{name: "helpers", tpl: "{{capitalize .a}} {{kebabCase .b}} {{camelCase .b}} {{pluralize .c}}", data: map[string]any{"a": "task", "b": "Due Date", "c": "category"}, want: "Task due-date dueDate categories"},
		{name: "loose equality", tpl: `{{if eq .n 3}}three{{end}}`, data: map[string]any{"n": float64(3)}, want: "three"},
		{name: "json helper", tpl: "{{json .v}}", data: map[string]any{"v": []any{"<b>"}}, want: "[\n  \"\\u003cb\\u003e\"\n]"},
	}

	r := NewTemplateRenderer()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := mustSection(t, tt.tpl)
			got, err := r.Render("test", SectionHTML, c.html, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplateRenderer_EmptySection(t *testing.T) {
	c := mustSection(t, "   ")
	assert.Nil(t, c.html)

	got, err := NewTemplateRenderer().Render("test", SectionHTML, c.html, nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestTemplateRenderer_ExecutionFailure(t *testing.T) {
	c := mustSection(t, `{{index .items 5}}`)
	r := NewTemplateRenderer()

	_, err := r.Render("view-list", SectionHTML, c.html, map[string]any{"items": []any{"a"}})
	require.Error(t, err)
	var fe *appforge.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, appforge.ErrCodeRenderFailed, fe.Code)

	marked, err := r.RenderOrMark("view-list", "tasks", SectionHTML, c.html, map[string]any{"items": []any{"a"}})
	require.Error(t, err)
	assert.Contains(t, marked, `class="af-render-error"`)
	assert.Contains(t, marked, "view-list (tasks)")
}

func TestRenderErrorMarker(t *testing.T) {
	css := renderErrorMarker("modal", "*/ body { }", SectionCSS)
	assert.True(t, strings.HasPrefix(css, "/* render error: "))
	assert.Equal(t, 1, strings.Count(css, "*/"), "marker must not close its comment early")

	html := renderErrorMarker("modal", "<script>", SectionHTML)
	assert.NotContains(t, html, "<script>")
}

func TestParseSection_SyntaxError(t *testing.T) {
	_, err := compilePattern(&appforge.Pattern{ID: "broken", Template: appforge.PatternTemplate{JS: "{{if .x}}"}})
	require.Error(t, err)
	var fe *appforge.ForgeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "broken", fe.Details["patternId"])
}

func TestCaseHelpers(t *testing.T) {
	tests := []struct {
		in        string
		kebab     string
		camel     string
		plural    string
		capitalFn string
	}{
		{in: "task", kebab: "task", camel: "task", plural: "tasks", capitalFn: "Task"},
		{in: "dueDate", kebab: "due-date", camel: "dueDate", plural: "dueDates", capitalFn: "DueDate"},
		{in: "My Todo_List", kebab: "my-todo-list", camel: "myTodoList", plural: "My Todo_Lists", capitalFn: "My Todo_List"},
		{in: "status", kebab: "status", camel: "status", plural: "status", capitalFn: "Status"},
		{in: "", kebab: "", camel: "", plural: "", capitalFn: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.kebab, kebabCase(tt.in))
			assert.Equal(t, tt.camel, camelCase(tt.in))
			assert.Equal(t, tt.plural, pluralize(tt.in))
			assert.Equal(t, tt.capitalFn, capitalize(tt.in))
		})
	}
}

func TestLooseEqual(t *testing.T) {
	assert.True(t, looseEqual(3, float64(3)))
	assert.True(t, looseEqual("list", "list"))
	assert.True(t, looseEqual(appforge.ViewTypeList, "list"))
	assert.False(t, looseEqual("3", 4))
	assert.True(t, looseEqual(nil, nil))
	assert.False(t, looseEqual(nil, ""))
}
