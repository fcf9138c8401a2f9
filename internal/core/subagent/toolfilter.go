package subagent

import (
	"strings"

	"github.com/agentcore/coreagent/internal/core/models"
)

// toolAliases mirrors the alternative-name resolution the host session
// applies when filtering its own tool catalog, so a definition's "tools:"
// list can say "bash" or "shell" and match the dispatcher's "exec".
var toolAliases = map[string]string{
	"bash":        "exec",
	"shell":       "exec",
	"apply-patch": "apply_patch",
}

func normalizeTool(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := toolAliases[name]; ok {
		return alias
	}
	return name
}

// ToolFilter returns a predicate with the dispatch.ToolFilter shape
// (func(models.TurnContext, string) bool): it allows only the tools named
// in def.Tools, after alias normalization. An empty Tools list allows
// every tool, matching the host session's default of no restriction.
func ToolFilter(def *Definition) func(models.TurnContext, string) bool {
	if len(def.Tools) == 0 {
		return func(models.TurnContext, string) bool { return true }
	}
	allowed := make(map[string]struct{}, len(def.Tools))
	for _, t := range def.Tools {
		allowed[normalizeTool(t)] = struct{}{}
	}
	return func(_ models.TurnContext, name string) bool {
		_, ok := allowed[normalizeTool(name)]
		return ok
	}
}
