package orchestrator

import (
	"strings"

	"github.com/zjrosen/switchyard/internal/log"
)

// Template placeholders, substituted textually (not via a template engine,
// which would choke on the double-brace syntax).
const (
	PlaceholderTargetBranch = "{{targetBranch}}"
	PlaceholderBaseBranch   = "{{baseBranch}}"
)

// renderTemplate substitutes every occurrence of each placeholder in the
// configured template. A blank configured template, or one that renders to
// an empty string, falls back to the compiled-in default with a warning.
// Defaults are non-empty by construction, so the recursion bottoms out.
func renderTemplate(configured, fallback string, subs map[string]string) string {
	if strings.TrimSpace(configured) == "" {
		if configured == fallback {
			return fallback
		}
		log.Warn(log.CatOrch, "Configured command template is blank, using default", "default", fallback)
		return renderTemplate(fallback, fallback, subs)
	}

	out := configured
	for placeholder, value := range subs {
		out = strings.ReplaceAll(out, placeholder, value)
	}
	if strings.TrimSpace(out) == "" && configured != fallback {
		log.Warn(log.CatOrch, "Command template rendered empty, using default", "template", configured, "default", fallback)
		return renderTemplate(fallback, fallback, subs)
	}
	return out
}
