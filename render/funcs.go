package render

import (
	"fmt"
	"strings"
	"text/template"
	"unicode"
)

// helperFuncs are the data helpers every template gets.
func helperFuncs() template.FuncMap {
	return template.FuncMap{
		// Case conversion
		"pascalCase": PascalCase, // user_name → UserName
		"camelCase":  CamelCase,  // user_name → userName
		"snakeCase":  SnakeCase,  // UserName → user_name

		// String manipulation
		"plural":    Pluralize, // order → orders
		"quote":     Quote,     // test → "test"
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"trim":      strings.TrimSpace,
		"join":      strings.Join,
		"split":     strings.Split,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"replace":   strings.ReplaceAll,

		// Utilities
		"dict":    Dict,
		"default": Default,
	}
}

// words splits an identifier on separators and case changes:
// "user_name", "user-name", "userName" and "UserName" all give [user name].
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// acronyms keep their casing in PascalCase. Two-letter acronyms are all
// caps in .NET naming; longer ones are not listed and capitalize normally
// ("Xml", "Http").
var acronyms = map[string]string{
	"io": "IO",
	"ui": "UI",
	"db": "DB",
}

func capitalize(w string) string {
	lower := strings.ToLower(w)
	if a, ok := acronyms[lower]; ok {
		return a
	}
	r := []rune(lower)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// PascalCase converts an identifier to .NET PascalCase.
// Examples: user_name → UserName, http_client → HttpClient, db_context → DBContext
func PascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// CamelCase converts an identifier to camelCase.
// Examples: user_name → userName, UserID → userId
func CamelCase(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(ws[0]))
	for _, w := range ws[1:] {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// SnakeCase converts an identifier to snake_case.
// Examples: UserName → user_name, HTTPServer → http_server
func SnakeCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"mouse":  "mice",
	"index":  "indices",
	"status": "statuses",
}

// Pluralize returns the English plural of a word, keeping its leading case.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}
	lower := strings.ToLower(word)
	if p, ok := irregularPlurals[lower]; ok {
		if unicode.IsUpper([]rune(word)[0]) {
			return capitalize(p)
		}
		return p
	}

	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"), strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

// Quote wraps a string in C# string literal quotes, escaping as needed.
func Quote(s string) string {
	return fmt.Sprintf("%q", s)
}

// Dict creates a map from alternating key-value pairs.
// Usage in template: {{ template "property" (dict "Name" .Name "Type" .Type) }}
func Dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict requires an even number of arguments")
	}
	result := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings, got %T at position %d", values[i], i)
		}
		result[key] = values[i+1]
	}
	return result, nil
}

// Default returns def when val is nil or an empty string.
func Default(def, val any) any {
	if val == nil {
		return def
	}
	if s, ok := val.(string); ok && s == "" {
		return def
	}
	return val
}
