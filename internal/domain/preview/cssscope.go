package preview

import (
	"regexp"
	"strings"
)

var (
	rootSelectorRe = regexp.MustCompile(`:root`)
	htmlSelectorRe = regexp.MustCompile(`(^|[,\s])html\b`)
	bodySelectorRe = regexp.MustCompile(`(^|[,\s])body\b`)
	ruleHeaderRe   = regexp.MustCompile(`(^|\})\s*([^@{}][^{]*)\{`)
	keyframeStepRe = regexp.MustCompile(`^(from|to|\d+%)`)
)

// ScopeCSS rewrites a stylesheet so its rules only apply inside the element
// carrying the scope class. Root-scope selectors (:root, html, body) become
// the scope class itself; every other top-level selector is prefixed with
// it. At-rules and keyframe step selectors pass through unscoped so
// animations keep working.
func ScopeCSS(css, scopeClass string) string {
	if css == "" {
		return ""
	}
	scope := "." + scopeClass

	css = rootSelectorRe.ReplaceAllString(css, scope)
	css = htmlSelectorRe.ReplaceAllString(css, "${1}"+scope)
	css = bodySelectorRe.ReplaceAllString(css, "${1}"+scope)

	return ruleHeaderRe.ReplaceAllStringFunc(css, func(header string) string {
		m := ruleHeaderRe.FindStringSubmatch(header)
		prefix, selectors := m[1], m[2]

		parts := strings.Split(selectors, ",")
		for i, part := range parts {
			sel := strings.TrimSpace(part)
			switch {
			case sel == "":
				parts[i] = ""
			case strings.HasPrefix(sel, scope):
				parts[i] = sel
			case keyframeStepRe.MatchString(sel):
				parts[i] = sel
			case strings.HasPrefix(sel, "@"):
				parts[i] = sel
			default:
				parts[i] = scope + " " + sel
			}
		}
		return prefix + " " + strings.Join(parts, ", ") + " {"
	})
}
