package pipeline

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
)

// DeferBudget is how long a handler may run before the middleware issues
// a background defer on its behalf. Discord wants the initial response
// within 3 s; one second of margin covers the round trip.
const DeferBudget = 2 * time.Second

// DeferMiddleware acknowledges slow handlers automatically. The defer is
// issued in the background; the Context serialises it against whatever
// Respond the handler eventually makes.
func DeferMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *interaction.Context) error {
			done := make(chan error, 1)
			go func() {
				done <- next.Handle(ctx)
			}()

			timer := time.NewTimer(DeferBudget)
			defer timer.Stop()

			select {
			case err := <-done:
				return err
			case <-timer.C:
				if ctx.State() == interaction.StateInitial {
					if err := ctx.Defer(false, true); err != nil {
						log.Printf("[Pipeline] auto-defer failed for %s: %v", ctx.Key(), err)
					}
				}
				return <-done
			}
		})
	}
}

// ErrorMiddleware converts HandlerErrors into ephemeral replies and keeps
// internal errors away from the user.
func ErrorMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *interaction.Context) error {
			err := next.Handle(ctx)
			if err == nil {
				return nil
			}

			var handlerErr *HandlerError
			message := "An error occurred while processing your request."
			if errors.As(err, &handlerErr) && handlerErr.ShowToUser {
				message = handlerErr.UserMessage
			}
			log.Printf("[Pipeline] handler error (user=%s guild=%s): %v", ctx.AuthorID(), ctx.GuildID(), err)

			if _, rerr := ctx.Respond(interaction.NewEphemeralResponse(message)); rerr != nil {
				log.Printf("[Pipeline] error response failed: %v", rerr)
			}
			return nil
		})
	}
}

// RecoveryMiddleware converts handler panics into errors.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *interaction.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Pipeline] panic recovered: %v", r)
					switch v := r.(type) {
					case error:
						err = v
					default:
						err = fmt.Errorf("panic: %v", r)
					}
				}
			}()
			return next.Handle(ctx)
		})
	}
}

// LoggingMiddleware logs each interaction and its handling duration.
func LoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *interaction.Context) error {
			start := time.Now()
			err := next.Handle(ctx)
			label := ctx.CustomID()
			if label == "" {
				label = "command"
			}
			log.Printf("[Pipeline] %s by %s in guild %s took %v", label, ctx.AuthorID(), ctx.GuildID(), time.Since(start))
			return err
		})
	}
}

// GuildOnlyMiddleware rejects interactions outside guilds.
func GuildOnlyMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *interaction.Context) error {
			if ctx.GuildID() == "" {
				return NewUserError("This command only works in a server.", ErrorCodeBadRequest)
			}
			return next.Handle(ctx)
		})
	}
}
