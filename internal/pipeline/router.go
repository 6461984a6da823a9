package pipeline

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
)

// Router groups handlers for one domain: a slash command name plus the
// component/modal custom-id prefixes the domain owns.
type Router struct {
	domain     string
	commands   map[string]Handler // keyed by subcommand, "" for bare command
	components map[string]Handler // keyed by custom-id action
	modals     map[string]Handler
	middleware []Middleware
}

// NewRouter creates a router for a domain.
func NewRouter(domain string) *Router {
	return &Router{
		domain:     domain,
		commands:   make(map[string]Handler),
		components: make(map[string]Handler),
		modals:     make(map[string]Handler),
	}
}

// Use adds middleware applied to handlers registered afterwards.
func (r *Router) Use(middleware ...Middleware) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

func (r *Router) wrap(h Handler) Handler {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

// Command registers the bare slash command handler.
func (r *Router) Command(fn HandlerFunc) *Router {
	r.commands[""] = r.wrap(fn)
	return r
}

// Subcommand registers a subcommand handler.
func (r *Router) Subcommand(name string, fn HandlerFunc) *Router {
	r.commands[name] = r.wrap(fn)
	return r
}

// Component registers a handler for custom ids "<domain>:<action>...".
func (r *Router) Component(action string, fn HandlerFunc) *Router {
	r.components[action] = r.wrap(fn)
	return r
}

// Modal registers a modal submit handler.
func (r *Router) Modal(action string, fn HandlerFunc) *Router {
	r.modals[action] = r.wrap(fn)
	return r
}

// CanHandle reports whether the interaction belongs to this domain.
func (r *Router) CanHandle(ctx *interaction.Context) bool {
	_, ok := r.resolve(ctx)
	return ok
}

// Handle routes the interaction to the registered handler.
func (r *Router) Handle(ctx *interaction.Context) error {
	h, ok := r.resolve(ctx)
	if !ok {
		return NewNotFoundError("handler")
	}
	return h.Handle(ctx)
}

func (r *Router) resolve(ctx *interaction.Context) (Handler, bool) {
	switch ctx.Interaction.Type {
	case discordgo.InteractionApplicationCommand:
		data := ctx.Interaction.ApplicationCommandData()
		if data.Name != r.domain {
			return nil, false
		}
		sub := ""
		if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			sub = data.Options[0].Name
		}
		if h, ok := r.commands[sub]; ok {
			return h, true
		}
		if h, ok := r.commands[""]; ok {
			return h, true
		}
		return nil, false

	case discordgo.InteractionMessageComponent:
		action, ok := r.splitCustomID(ctx.CustomID())
		if !ok {
			return nil, false
		}
		h, ok := r.components[action]
		if !ok {
			h, ok = r.components["*"]
		}
		return h, ok

	case discordgo.InteractionModalSubmit:
		action, ok := r.splitCustomID(ctx.CustomID())
		if !ok {
			return nil, false
		}
		h, ok := r.modals[action]
		if !ok {
			h, ok = r.modals["*"]
		}
		return h, ok
	}
	return nil, false
}

// splitCustomID extracts the action from "<domain>:<action>[:...]".
func (r *Router) splitCustomID(customID string) (string, bool) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) < 2 || parts[0] != r.domain {
		return "", false
	}
	return parts[1], true
}
