package agent

import (
	"sort"
	"strings"
)

// Render replaces each {key} in instruction with state[key]. Braces that do
// not name a state key are left alone, so JSON examples survive.
func Render(instruction string, state map[string]string) string {
	if len(state) == 0 {
		return instruction
	}
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", state[k])
	}
	return strings.NewReplacer(pairs...).Replace(instruction)
}
