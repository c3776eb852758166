// Package analytics emits tracking events to the analytics topic.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"learnstore/internal/domain"
)

// Event names.
const (
	OrderCompleted                 = "Order Completed"
	MobileCoursePurchaseViewCalled = "Mobile Course Purchase View Called"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Event is one tracking event.
type Event struct {
	ID         string         `json:"message_id"`
	Name       string         `json:"event"`
	UserID     string         `json:"user_id"`
	Site       string         `json:"site"`
	Properties map[string]any `json:"properties"`
	Timestamp  time.Time      `json:"timestamp"`
}

type Sink struct {
	writer MessageWriter
	logger *log.Logger
	now    func() time.Time
}

func NewSink(writer MessageWriter, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Sink{writer: writer, logger: logger, now: time.Now}
}

// Track publishes an event for user on site.
func (s *Sink) Track(ctx context.Context, site domain.Site, user domain.User, name string, properties map[string]any) error {
	ev := Event{
		ID:         uuid.NewString(),
		Name:       name,
		UserID:     user.Username,
		Site:       site.Key,
		Properties: properties,
		Timestamp:  s.now().UTC(),
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", name, err)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(user.Username), Value: value}); err != nil {
		return fmt.Errorf("track %s: %w", name, err)
	}
	return nil
}

// TrackSilently is Track with the error logged instead of returned.
func (s *Sink) TrackSilently(ctx context.Context, site domain.Site, user domain.User, name string, properties map[string]any) {
	if err := s.Track(ctx, site, user, name, properties); err != nil {
		s.logger.Printf("analytics: track failed event=%q user=%s error=%v", name, user.Username, err)
	}
}

// OrderProperties builds the Order Completed properties. For each line the
// product id is the SKU and "sku" carries the seat type.
func OrderProperties(order domain.Order) map[string]any {
	products := make([]map[string]any, 0, len(order.Lines))
	for _, l := range order.Lines {
		name := l.CourseID
		if name == "" {
			name = l.Title
		}
		products = append(products, map[string]any{
			"id":       l.PartnerSKU,
			"sku":      l.SeatType,
			"name":     name,
			"price":    money(l.LinePriceExclTaxCents),
			"quantity": l.Quantity,
			"category": l.ProductClass,
		})
	}
	var coupon any
	if order.VoucherCode != "" {
		coupon = order.VoucherCode
	}
	return map[string]any{
		"orderId":  order.Number,
		"total":    money(order.TotalExclTaxCents),
		"currency": order.Currency,
		"coupon":   coupon,
		"discount": money(order.DiscountCents),
		"products": products,
	}
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
