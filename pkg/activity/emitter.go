package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "renderer"

// Config controls which events a model emits.
type Config struct {
	Enabled bool
	// Channel replaces DefaultChannel.
	Channel string
	// Verbs restricts emission to the listed verbs. Empty emits every verb.
	Verbs []string
}

// Emitter applies Config to events before handing them to hooks.
type Emitter struct {
	hooks   Hooks
	channel string
	verbs   map[string]bool
}

// NewEmitter drops nil hooks and returns a disabled emitter when cfg is
// disabled or no hook is left.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	var live Hooks
	for _, hook := range hooks {
		if hook != nil {
			live = append(live, hook)
		}
	}
	if !cfg.Enabled || len(live) == 0 {
		return &Emitter{}
	}
	e := &Emitter{hooks: live, channel: strings.TrimSpace(cfg.Channel)}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	if len(cfg.Verbs) > 0 {
		e.verbs = make(map[string]bool, len(cfg.Verbs))
		for _, verb := range cfg.Verbs {
			e.verbs[strings.TrimSpace(verb)] = true
		}
	}
	return e
}

// Enabled reports whether Emit can reach a hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit sends event to the hooks unless its verb is filtered out. An empty
// channel gets the configured one.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if e.verbs != nil && !e.verbs[strings.TrimSpace(event.Verb)] {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
