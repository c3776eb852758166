// Package notify runs the post-order side effects. Handlers run in order,
// each inside its own failure boundary: an error or panic is logged and the
// next handler still runs. Nothing here can fail a placed order.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"

	"learnstore/internal/domain"
)

// OrderPlaced describes a committed order.
type OrderPlaced struct {
	Order domain.Order
	Site  domain.Site
	User  domain.User
	// MessageID is the marketing message the buyer arrived from, if any.
	MessageID string
}

type Handler interface {
	Name() string
	Handle(ctx context.Context, ev OrderPlaced) error
}

type Notifier struct {
	handlers []Handler
	logger   *log.Logger
}

func New(logger *log.Logger, handlers ...Handler) *Notifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Notifier{handlers: handlers, logger: logger}
}

// OrderPlaced runs every handler and returns once all have finished.
func (n *Notifier) OrderPlaced(ctx context.Context, ev OrderPlaced) {
	for _, h := range n.handlers {
		if err := n.run(ctx, h, ev); err != nil {
			n.logger.Printf("notify: handler failed handler=%s order=%s user=%s error=%v", h.Name(), ev.Order.Number, ev.User.Username, err)
		}
	}
}

func (n *Notifier) run(ctx context.Context, h Handler, ev OrderPlaced) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}
