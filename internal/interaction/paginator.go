package interaction

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/interaction/customid"
)

// PageRenderer produces one page of a stateless paginator. PageCount may
// hit a backing store; it is consulted on every interaction because the
// paginator itself holds no state between clicks.
type PageRenderer interface {
	RenderPage(page int) (*Response, error)
	PageCount() int
}

// Paginator is a navigation widget whose entire state rides inside the
// component custom ids, so it survives process restarts: any instance
// with the same type tag can pick up a click on a button minted before
// the restart.
type Paginator struct {
	typeTag  string
	renderer PageRenderer
}

// NewPaginator creates a paginator for one type tag.
func NewPaginator(typeTag string, renderer PageRenderer) *Paginator {
	return &Paginator{typeTag: typeTag, renderer: renderer}
}

// Respond sends the given page with navigation buttons bound to the
// invoking user.
func (p *Paginator) Respond(c *Context, page int) error {
	response, err := p.pageResponse(page, c.AuthorID())
	if err != nil {
		return err
	}
	_, err = c.Respond(response)
	return err
}

// CanHandle reports whether the interaction carries this paginator's
// custom-id state.
func (p *Paginator) CanHandle(c *Context) bool {
	state, recognised, err := customid.Decode(c.CustomID())
	if err != nil || !recognised {
		return false
	}
	return state.Type == p.typeTag
}

// Handle rebuilds the paginator from the custom id and renders the
// requested page as an in-place update. Clicks from users other than
// the recorded author are rejected.
func (p *Paginator) Handle(c *Context) error {
	state, recognised, err := customid.Decode(c.CustomID())
	if err != nil {
		log.Printf("[Paginator] stale custom id on %s: %v", c.Key(), err)
		_, rerr := c.Respond(NewEphemeralResponse("This widget is too old, please run the command again."))
		return rerr
	}
	if !recognised || state.Type != p.typeTag {
		return fmt.Errorf("custom id does not belong to paginator %q", p.typeTag)
	}
	if state.AuthorID != "" && state.AuthorID != c.AuthorID() {
		_, rerr := c.Respond(NewEphemeralResponse("This widget belongs to someone else."))
		return rerr
	}

	page := state.Page
	count := p.renderer.PageCount()
	switch state.CustomID {
	case "first":
		page = 0
	case "prev":
		page--
	case "next":
		page++
	case "last":
		page = count - 1
	}
	if page < 0 {
		page = 0
	}
	if page >= count {
		page = count - 1
	}

	response, err := p.pageResponse(page, state.AuthorID)
	if err != nil {
		return err
	}
	_, err = c.Respond(response.AsUpdate())
	return err
}

func (p *Paginator) pageResponse(page int, authorID string) (*Response, error) {
	response, err := p.renderer.RenderPage(page)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	buttons, err := p.navigation(page, authorID)
	if err != nil {
		return nil, err
	}
	response.Components = append(response.Components, buttons)
	return response, nil
}

// navigation builds the first/prev/next/last row, each button carrying
// the full serialised state.
func (p *Paginator) navigation(page int, authorID string) (discordgo.MessageComponent, error) {
	count := p.renderer.PageCount()
	button := func(action, label string, disabled bool) (discordgo.Button, error) {
		id, err := customid.Encode(&customid.State{
			Type:     p.typeTag,
			CustomID: action,
			Page:     page,
			AuthorID: authorID,
		})
		if err != nil {
			return discordgo.Button{}, err
		}
		return discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: id,
			Disabled: disabled,
		}, nil
	}

	first, err := button("first", "⏮", page == 0)
	if err != nil {
		return nil, err
	}
	prev, err := button("prev", "◀", page == 0)
	if err != nil {
		return nil, err
	}
	next, err := button("next", "▶", page >= count-1)
	if err != nil {
		return nil, err
	}
	last, err := button("last", "⏭", page >= count-1)
	if err != nil {
		return nil, err
	}
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{first, prev, next, last}}, nil
}
