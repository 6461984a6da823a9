package pipeline

import (
	"github.com/KuramaSyu/inu-sub000/internal/interaction"
)

// Handler processes one interaction. Handlers respond through the
// Context; the pipeline only cares whether they claimed the interaction
// and whether they failed.
type Handler interface {
	// CanHandle determines if this handler should process the interaction.
	CanHandle(ctx *interaction.Context) bool

	// Handle processes the interaction.
	Handle(ctx *interaction.Context) error
}

// HandlerFunc allows plain functions to implement Handler.
type HandlerFunc func(ctx *interaction.Context) error

// CanHandle for HandlerFunc always returns true.
func (f HandlerFunc) CanHandle(ctx *interaction.Context) bool { return true }

// Handle calls the function.
func (f HandlerFunc) Handle(ctx *interaction.Context) error { return f(ctx) }

// Middleware wraps a handler with cross-cutting behaviour.
type Middleware func(Handler) Handler

// Chain folds several middleware into one, applied in declaration order.
func Chain(middleware ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middleware) - 1; i >= 0; i-- {
			next = middleware[i](next)
		}
		return next
	}
}

// wrapped pairs a Handler with a CanHandle-preserving middleware stack.
type wrapped struct {
	canHandle func(*interaction.Context) bool
	handler   Handler
}

func (w *wrapped) CanHandle(ctx *interaction.Context) bool { return w.canHandle(ctx) }
func (w *wrapped) Handle(ctx *interaction.Context) error   { return w.handler.Handle(ctx) }
