// Package checkout places an order for a basket: it recomputes offers, takes
// payment through a processor and converts the basket into an order at most
// once, then runs the post-order notifier.
package checkout

import (
	"context"
	"errors"
	"io"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"learnstore/internal/domain"
	"learnstore/internal/notify"
	"learnstore/internal/payment"
	"learnstore/internal/transaction"
)

type Baskets interface {
	GetByID(ctx context.Context, siteID, id string) (*domain.Basket, error)
	ReplaceDiscounts(ctx context.Context, basketID string, discounts []domain.Discount) error
	Transition(ctx context.Context, basketID, from, to string) error
}

type Orders interface {
	Create(ctx context.Context, order domain.Order) (*domain.Order, error)
}

type OfferApplicator interface {
	Apply(ctx context.Context, site domain.Site, basket *domain.Basket) error
}

type Processors interface {
	Resolve(site domain.Site, name string) (payment.Processor, error)
}

type Notifier interface {
	OrderPlaced(ctx context.Context, ev notify.OrderPlaced)
}

// Request is one checkout attempt by an authenticated buyer.
type Request struct {
	Site      domain.Site
	User      domain.User
	BasketID  string
	Processor string
	Payload   payment.Payload
	MessageID string
}

type Pipeline struct {
	baskets    Baskets
	orders     Orders
	offers     OfferApplicator
	processors Processors
	notifier   Notifier
	scope      transaction.Scope
	logger     *log.Logger
	tracer     trace.Tracer
}

type Deps struct {
	Baskets    Baskets
	Orders     Orders
	Offers     OfferApplicator
	Processors Processors
	Notifier   Notifier
	Scope      transaction.Scope
	Logger     *log.Logger
}

func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		baskets:    deps.Baskets,
		orders:     deps.Orders,
		offers:     deps.Offers,
		processors: deps.Processors,
		notifier:   deps.Notifier,
		scope:      deps.Scope,
		logger:     logger,
		tracer:     otel.Tracer("learnstore/internal/checkout"),
	}
}

// Place runs one checkout attempt to a terminal Outcome.
func (p *Pipeline) Place(ctx context.Context, req Request) Outcome {
	ctx, span := p.tracer.Start(ctx, "checkout.Place", trace.WithAttributes(
		attribute.String("site", req.Site.Key),
		attribute.String("basket_id", req.BasketID),
		attribute.String("processor", req.Processor),
	))
	defer span.End()

	out := p.place(ctx, req)
	span.SetAttributes(attribute.String("outcome", string(out.Kind)))
	if out.Kind != Success {
		span.SetAttributes(attribute.String("reason", out.Reason))
	}
	if out.Kind == Fatal {
		span.SetStatus(codes.Error, out.Reason)
		if out.Err != nil {
			span.RecordError(out.Err)
		}
	}
	return out
}

func (p *Pipeline) place(ctx context.Context, req Request) Outcome {
	if req.BasketID == "" || req.Processor == "" {
		return failed(Rejected, ReasonInvalidRequest, nil)
	}

	basket, err := p.baskets.GetByID(ctx, req.Site.ID, req.BasketID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && basket.Owner != req.User.Username) {
		p.logger.Printf("checkout: basket not found basket_id=%s user=%s", req.BasketID, req.User.Username)
		return failed(Rejected, ReasonBasketNotFound, domain.ErrNotFound)
	}
	if err != nil {
		p.logger.Printf("checkout: load basket basket_id=%s error=%v", req.BasketID, err)
		return failed(Fatal, ReasonInternalError, err)
	}

	processor, err := p.processors.Resolve(req.Site, req.Processor)
	if err != nil {
		return failed(Rejected, ReasonUnknownProcessor, err)
	}

	if basket.IsSubmitted() {
		return p.submittedBasket(ctx, req, processor)
	}
	if basket.IsEmpty() {
		return failed(Rejected, ReasonInvalidRequest, domain.ErrEmptyBasket)
	}

	if err := p.baskets.Transition(ctx, basket.ID, domain.BasketOpen, domain.BasketFrozen); err != nil {
		if errors.Is(err, domain.ErrBasketFrozen) {
			return failed(Fatal, ReasonBasketLocked, err)
		}
		return failed(Fatal, ReasonInternalError, err)
	}

	basket, out, ok := p.frozenBasket(ctx, req)
	if !ok {
		p.thaw(ctx, req.BasketID)
		return out
	}

	result, out, ok := p.handlePayment(ctx, req, processor, basket)
	if !ok {
		return out
	}
	return p.createOrder(ctx, req, basket, result)
}

// frozenBasket reloads the basket once it is frozen, so payment and the order
// see exactly the lines that can no longer change, and recomputes its offers.
func (p *Pipeline) frozenBasket(ctx context.Context, req Request) (*domain.Basket, Outcome, bool) {
	basket, err := p.baskets.GetByID(ctx, req.Site.ID, req.BasketID)
	if err != nil {
		p.logger.Printf("checkout: reload frozen basket basket_id=%s error=%v", req.BasketID, err)
		return nil, failed(Fatal, ReasonInternalError, err), false
	}
	if basket.Status != domain.BasketFrozen {
		return nil, failed(Fatal, ReasonBasketLocked, domain.ErrBasketFrozen), false
	}
	if basket.IsEmpty() {
		return nil, failed(Rejected, ReasonInvalidRequest, domain.ErrEmptyBasket), false
	}
	if err := p.offers.Apply(ctx, req.Site, basket); err != nil {
		p.logger.Printf("checkout: apply offers basket_id=%s error=%v", basket.ID, err)
		return nil, failed(Fatal, ReasonOffersUnavailable, err), false
	}
	return basket, Outcome{}, true
}

// submittedBasket answers a confirmation for a basket that already has an
// order: a replay of the applied transaction is redundant, anything else is a
// second order attempt.
func (p *Pipeline) submittedBasket(ctx context.Context, req Request, processor payment.Processor) Outcome {
	redundant, err := processor.IsRedundant(ctx, req.Payload)
	if err != nil {
		p.logger.Printf("checkout: redundancy check basket_id=%s error=%v", req.BasketID, err)
		return failed(Fatal, ReasonInternalError, err)
	}
	if redundant {
		p.logger.Printf("checkout: redundant payment basket_id=%s user=%s transaction_id=%s", req.BasketID, req.User.Username, processor.TransactionID(req.Payload))
		return failed(Redundant, ReasonRedundantPayment, nil)
	}
	p.logger.Printf("checkout: basket already ordered basket_id=%s user=%s transaction_id=%s", req.BasketID, req.User.Username, processor.TransactionID(req.Payload))
	return failed(Fatal, ReasonAlreadyOrdered, domain.ErrAlreadyPlaced)
}

// handlePayment calls the processor outside any transaction; the processor
// opens its own short one to settle. On failure the basket is reopened.
func (p *Pipeline) handlePayment(ctx context.Context, req Request, processor payment.Processor, basket *domain.Basket) (*payment.Result, Outcome, bool) {
	ctx, span := p.tracer.Start(ctx, "checkout.HandlePayment")
	defer span.End()

	result, err := processor.HandlePayment(transaction.Detached(ctx), req.Payload, basket)
	if err == nil {
		return result, Outcome{}, true
	}
	span.RecordError(err)

	txnID := processor.TransactionID(req.Payload)
	p.thaw(ctx, basket.ID)
	switch {
	case payment.IsRedundant(err):
		p.logger.Printf("checkout: redundant payment basket_id=%s user=%s processor=%s transaction_id=%s", basket.ID, req.User.Username, processor.Name(), txnID)
		return nil, failed(Redundant, ReasonRedundantPayment, err), false
	case payment.IsDeclined(err):
		p.logger.Printf("checkout: payment declined basket_id=%s user=%s processor=%s transaction_id=%s error=%v", basket.ID, req.User.Username, processor.Name(), txnID, err)
		return nil, failed(Declined, ReasonPaymentDeclined, err), false
	}
	p.logger.Printf("checkout: RECONCILE payment failed basket_id=%s user=%s processor=%s transaction_id=%s error=%v", basket.ID, req.User.Username, processor.Name(), txnID, err)
	return nil, failed(Fatal, ReasonPaymentFailed, err), false
}

func (p *Pipeline) thaw(ctx context.Context, basketID string) {
	if err := p.baskets.Transition(ctx, basketID, domain.BasketFrozen, domain.BasketOpen); err != nil {
		p.logger.Printf("checkout: thaw basket basket_id=%s error=%v", basketID, err)
	}
}

// createOrder converts the paid basket into an order. Payment is already
// captured, so every failure here is logged for reconciliation.
func (p *Pipeline) createOrder(ctx context.Context, req Request, basket *domain.Basket, result *payment.Result) Outcome {
	ctx, span := p.tracer.Start(ctx, "checkout.CreateOrder")
	defer span.End()

	number := domain.OrderNumberFor(req.Site.PartnerCode, basket.ID)
	order, err := transaction.ExecuteWithResult(ctx, p.scope, func(ctx context.Context) (*domain.Order, error) {
		if err := p.baskets.ReplaceDiscounts(ctx, basket.ID, basket.Discounts); err != nil {
			return nil, err
		}
		order, err := p.orders.Create(ctx, domain.NewOrderFromBasket(number, req.Site, req.User, basket))
		if err != nil {
			return nil, err
		}
		if err := p.baskets.Transition(ctx, basket.ID, domain.BasketFrozen, domain.BasketSubmitted); err != nil {
			return nil, err
		}
		return order, nil
	})
	if err != nil {
		span.RecordError(err)
		p.logger.Printf("checkout: RECONCILE order creation failed basket_id=%s user=%s transaction_id=%s order=%s error=%v", basket.ID, req.User.Username, result.TransactionID, number, err)
		if errors.Is(err, domain.ErrAlreadyPlaced) {
			return failed(Fatal, ReasonAlreadyOrdered, err)
		}
		return failed(Fatal, ReasonOrderCreationFailed, err)
	}
	p.logger.Printf("checkout: order placed order=%s basket_id=%s user=%s transaction_id=%s total=%d", order.Number, basket.ID, req.User.Username, result.TransactionID, order.TotalInclTaxCents)

	if p.notifier != nil {
		p.notifier.OrderPlaced(context.WithoutCancel(ctx), notify.OrderPlaced{
			Order:     *order,
			Site:      req.Site,
			User:      req.User,
			MessageID: req.MessageID,
		})
	}
	return succeeded(order.Number)
}
