// Package timeparse lets agents preview how a time expression resolves.
package timeparse

import (
	"context"
	"fmt"

	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/tools"
)

type Tool struct {
	resolver *meetingtime.Resolver
}

func New(r *meetingtime.Resolver) *Tool { return &Tool{resolver: r} }

func (t *Tool) Name() string { return "resolve_meeting_time" }
func (t *Tool) Description() string {
	return "Resolve a meeting time expression such as 'tomorrow 3 pm' to an exact timestamp. Unrecognized expressions resolve to five minutes from now and are flagged as fallback."
}
func (t *Tool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"expression": tools.Prop("string", "The time expression to resolve"),
	})
}
func (t *Tool) Validate(map[string]any) error { return nil }

func (t *Tool) Execute(_ context.Context, params map[string]any) (*tools.Result, error) {
	res := t.resolver.ResolveDetailed(tools.String(params, "expression"))
	display := meetingtime.FormatDisplay(res.Time)

	out := fmt.Sprintf("Resolved to %s (%s).", display, meetingtime.FormatClock(res.Time))
	if res.Fallback {
		out = fmt.Sprintf("Could not understand %q; using five minutes from now: %s.", res.Input, display)
	}
	return &tools.Result{
		Output:  out,
		Success: true,
		Metadata: map[string]any{
			"start_time": display,
			"zoom_time":  meetingtime.FormatZoom(res.Time),
			"rule":       res.Rule,
			"fallback":   res.Fallback,
		},
	}, nil
}
