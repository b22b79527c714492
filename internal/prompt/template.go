package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes every {{name}} in tmpl in a single pass, so values
// are inserted verbatim even when they contain placeholders themselves.
// All names must be present in vars.
func Render(tmpl string, vars map[string]string) (string, error) {
	var (
		b       strings.Builder
		missing []string
		last    int
	)
	for _, m := range placeholder.FindAllStringSubmatchIndex(tmpl, -1) {
		name := tmpl[m[2]:m[3]]
		val, ok := vars[name]
		if !ok {
			if !contains(missing, name) {
				missing = append(missing, name)
			}
			continue
		}
		b.WriteString(tmpl[last:m[0]])
		b.WriteString(val)
		last = m[1]
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}

// ExtractVariables lists placeholder names in order of first use.
func ExtractVariables(tmpl string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
