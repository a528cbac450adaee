package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"unicode"

	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// Template sections of a pattern.
const (
	SectionHTML = "html"
	SectionCSS  = "css"
	SectionJS   = "js"
)

// compiledPattern holds the parsed templates of one pattern. A nil template
// means the section is empty.
type compiledPattern struct {
	html *template.Template
	css  *template.Template
	js   *template.Template
}

func (c *compiledPattern) section(name string) *template.Template {
	switch name {
	case SectionHTML:
		return c.html
	case SectionCSS:
		return c.css
	case SectionJS:
		return c.js
	}
	return nil
}

// TemplateFuncs returns the helper functions available to pattern templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"capitalize": capitalize,
		"lowercase":  strings.ToLower,
		"kebabCase":  kebabCase,
		"camelCase":  camelCase,
		"pluralize":  pluralize,
		"eq":         looseEqual,
		"json":       prettyJSON,
		"first":      isFirst,
		"last":       isLast,
	}
}

func compilePattern(p *appforge.Pattern) (*compiledPattern, error) {
	c := &compiledPattern{}
	var err error
	if c.html, err = parseSection(p.ID, SectionHTML, p.Template.HTML); err != nil {
		return nil, err
	}
	if c.css, err = parseSection(p.ID, SectionCSS, p.Template.CSS); err != nil {
		return nil, err
	}
	if c.js, err = parseSection(p.ID, SectionJS, p.Template.JS); err != nil {
		return nil, err
	}
	return c, nil
}

func parseSection(patternID, section, body string) (*template.Template, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	tpl, err := template.New(patternID + "." + section).
		Option("missingkey=zero").
		Funcs(TemplateFuncs()).
		Parse(body)
	if err != nil {
		return nil, appforge.NewRenderError(patternID, section, err)
	}
	return tpl, nil
}

// TemplateRenderer evaluates compiled pattern sections against a context.
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render executes one section. Execution errors and panics are converted
// into a *appforge.ForgeError; the returned string is then empty.
func (r *TemplateRenderer) Render(patternID, section string, tpl *template.Template, data map[string]any) (out string, err error) {
	if tpl == nil {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = ""
			err = appforge.NewRenderError(patternID, section, fmt.Errorf("panic: %v", rec))
		}
	}()

	var buf bytes.Buffer
	if execErr := tpl.Execute(&buf, data); execErr != nil {
		return "", appforge.NewRenderError(patternID, section, execErr)
	}
	return buf.String(), nil
}

// RenderOrMark renders a section and replaces a failure with a visible marker
// so the rest of the document still assembles.
func (r *TemplateRenderer) RenderOrMark(patternID, targetID, section string, tpl *template.Template, data map[string]any) (string, error) {
	out, err := r.Render(patternID, section, tpl, data)
	if err == nil {
		return out, nil
	}
	zap.S().Warnw("pattern render failed", "pattern", patternID, "target", targetID, "section", section, "error", err)
	return renderErrorMarker(patternID, targetID, section), err
}

func renderErrorMarker(patternID, targetID, section string) string {
	label := sanitizeMarkerText(patternID + " (" + targetID + ")")
	switch section {
	case SectionHTML:
		return `<div class="af-render-error" role="alert">Could not render ` + template.HTMLEscapeString(label) + `</div>`
	default:
		return "/* render error: " + label + " */"
	}
}

// sanitizeMarkerText keeps markers from closing the surrounding comment.
func sanitizeMarkerText(s string) string {
	return strings.NewReplacer("*/", "* /", "<", "", ">", "").Replace(s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// splitWords breaks on separators and lower-to-upper case changes.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			cur = append(cur, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func kebabCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "-")
}

func camelCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			w = capitalize(w)
		}
		words[i] = w
	}
	return strings.Join(words, "")
}

// pluralize appends "s", or "ies" after a trailing y. Words already ending in s are unchanged.
func pluralize(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "s"):
		return s
	case strings.HasSuffix(s, "y"):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

// looseEqual compares template values without the builtin eq's type errors.
// Numbers compare by value and everything else by formatted string.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// prettyJSON marshals v with indentation. The output is safe inside a
// script element because encoding/json escapes <, > and &.
func prettyJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// isFirst reports whether index i starts a loop.
func isFirst(i int) bool {
	return i == 0
}

// isLast reports whether index i is the final element of list.
func isLast(i int, list any) bool {
	rv := reflect.ValueOf(list)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String, reflect.Map:
		return i == rv.Len()-1
	}
	return false
}
