package trigger

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Rendered is a template with its placeholders substituted.
type Rendered struct {
	Title       string
	Body        string
	ActionURL   string
	ActionLabel string
}

// Render substitutes {{ name }} placeholders from vars. Missing variables render empty.
func Render(tmpl Template, vars map[string]string) Rendered {
	return Rendered{
		Title:       renderString(tmpl.Title, vars),
		Body:        renderString(tmpl.Body, vars),
		ActionURL:   renderString(tmpl.ActionURL, vars),
		ActionLabel: renderString(tmpl.ActionLabel, vars),
	}
}

func renderString(value string, vars map[string]string) string {
	if !strings.Contains(value, "{{") {
		return value
	}
	return placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return vars[name]
	})
}
