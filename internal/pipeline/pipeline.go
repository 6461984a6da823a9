package pipeline

import (
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
)

// Pipeline routes incoming interactions through registered handlers. The
// waiter gets first refusal on component/modal interactions so parked
// Ask prompts consume their own clicks.
type Pipeline struct {
	registry *interaction.Registry
	waiter   *interaction.Waiter

	mu           sync.RWMutex
	handlers     []Handler
	middleware   []Middleware
	errorHandler func(ctx *interaction.Context, err error)
}

// Config configures a Pipeline.
type Config struct {
	Registry *interaction.Registry
	Waiter   *interaction.Waiter
}

// New creates a pipeline.
func New(cfg *Config) *Pipeline {
	return &Pipeline{
		registry:     cfg.Registry,
		waiter:       cfg.Waiter,
		errorHandler: defaultErrorHandler,
	}
}

// Registry exposes the context registry, for handlers that resolve
// contexts of their own.
func (p *Pipeline) Registry() *interaction.Registry { return p.registry }

// Waiter exposes the waiter for Ask-style prompts.
func (p *Pipeline) Waiter() *interaction.Waiter { return p.waiter }

// Use adds middleware applied to every handler registered afterwards.
func (p *Pipeline) Use(middleware ...Middleware) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.middleware = append(p.middleware, middleware...)
}

// Register adds handlers, wrapping them in the current middleware stack.
func (p *Pipeline) Register(handlers ...Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range handlers {
		inner := h
		var stacked Handler = h
		for i := len(p.middleware) - 1; i >= 0; i-- {
			stacked = p.middleware[i](stacked)
		}
		p.handlers = append(p.handlers, &wrapped{
			canHandle: inner.CanHandle,
			handler:   stacked,
		})
	}
}

// SetErrorHandler replaces the last-resort error handler.
func (p *Pipeline) SetErrorHandler(fn func(ctx *interaction.Context, err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorHandler = fn
}

// HandleInteraction is the discordgo handler entry point.
func (p *Pipeline) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := p.registry.Get(s, i)

	// Parked Ask prompts eat their own component/modal interactions.
	if p.waiter != nil && p.waiter.Offer(ctx) {
		return
	}

	p.mu.RLock()
	handlers := make([]Handler, len(p.handlers))
	copy(handlers, p.handlers)
	errorHandler := p.errorHandler
	p.mu.RUnlock()

	for _, handler := range handlers {
		if !handler.CanHandle(ctx) {
			continue
		}
		if err := handler.Handle(ctx); err != nil {
			errorHandler(ctx, err)
		}
		return
	}

	// Nothing claimed the interaction.
	if ctx.State() == interaction.StateInitial {
		if _, err := ctx.Respond(interaction.NewEphemeralResponse("I don't know how to handle that.")); err != nil {
			log.Printf("[Pipeline] fallback response failed: %v", err)
		}
	}
}

// HandlerCount returns the number of registered handlers.
func (p *Pipeline) HandlerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}

func defaultErrorHandler(ctx *interaction.Context, err error) {
	log.Printf("[Pipeline] unhandled error for %s: %v", ctx.Key(), err)
	if _, rerr := ctx.Respond(interaction.NewEphemeralResponse("An error occurred while processing your request.")); rerr != nil {
		log.Printf("[Pipeline] error response failed: %v", rerr)
	}
}
