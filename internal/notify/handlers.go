package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"learnstore/internal/analytics"
	"learnstore/internal/client/creditprovider"
	"learnstore/internal/domain"
	"learnstore/internal/tasks"
)

// Tracker emits analytics events.
type Tracker interface {
	Track(ctx context.Context, site domain.Site, user domain.User, name string, properties map[string]any) error
}

// ReceiptSender dispatches credit receipt notifications.
type ReceiptSender interface {
	SendCreditReceipt(ctx context.Context, r tasks.CreditReceipt) error
}

// EnrollmentSender dispatches marketing enrollment updates.
type EnrollmentSender interface {
	UpdateCourseEnrollment(ctx context.Context, e tasks.CourseEnrollment) error
}

func discard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return logger
}

// AnalyticsHandler emits Order Completed.
type AnalyticsHandler struct {
	tracker Tracker
	logger  *log.Logger
}

func NewAnalyticsHandler(tracker Tracker, logger *log.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{tracker: tracker, logger: discard(logger)}
}

func (h *AnalyticsHandler) Name() string { return "analytics" }

func (h *AnalyticsHandler) Handle(ctx context.Context, ev OrderPlaced) error {
	if !ev.Order.IsCourseCompletionEvent() {
		h.logger.Printf("notify: analytics skipped order=%s total=%d", ev.Order.Number, ev.Order.TotalExclTaxCents)
		return nil
	}
	return h.tracker.Track(ctx, ev.Site, ev.User, analytics.OrderCompleted, analytics.OrderProperties(ev.Order))
}

// CreditReceiptHandler sends the credit receipt for single seat orders.
type CreditReceiptHandler struct {
	enabled   bool
	providers creditprovider.Source
	sender    ReceiptSender
	logger    *log.Logger
}

func NewCreditReceiptHandler(enabled bool, providers creditprovider.Source, sender ReceiptSender, logger *log.Logger) *CreditReceiptHandler {
	return &CreditReceiptHandler{enabled: enabled, providers: providers, sender: sender, logger: discard(logger)}
}

func (h *CreditReceiptHandler) Name() string { return "credit_receipt" }

func (h *CreditReceiptHandler) Handle(ctx context.Context, ev OrderPlaced) error {
	if !h.enabled {
		return nil
	}
	if len(ev.Order.Lines) != 1 {
		h.logger.Printf("notify: credit receipt supports single line orders only order=%s lines=%d", ev.Order.Number, len(ev.Order.Lines))
		return nil
	}
	line := ev.Order.Lines[0]
	if line.CreditProvider == "" {
		h.logger.Printf("notify: ERROR credit receipt not sent, seat product has no provider order=%s product=%s", ev.Order.Number, line.ProductID)
		return nil
	}
	if line.ProductClass != domain.ProductClassSeat {
		return nil
	}
	provider, err := h.providers.GetProvider(ctx, ev.Site, line.CreditProvider)
	if err != nil {
		return fmt.Errorf("credit provider %s: %w", line.CreditProvider, err)
	}
	if provider == nil {
		return nil
	}
	return h.sender.SendCreditReceipt(ctx, tasks.CreditReceipt{
		Username:       ev.User.Username,
		Email:          ev.User.Email,
		SiteKey:        ev.Site.Key,
		CourseTitle:    line.Title,
		ReceiptPageURL: ReceiptPageURL(ev.Site, ev.Order.Number),
		CreditHours:    line.CreditHours,
		CreditProvider: provider.DisplayName,
	})
}

// ReceiptPageURL is the LMS receipt page of an order.
func ReceiptPageURL(site domain.Site, orderNumber string) string {
	return strings.TrimRight(site.LMSURL, "/") + "/commerce/checkout/receipt/?order_number=" + url.QueryEscape(orderNumber)
}

// EnrollmentSyncHandler tells the marketing platform about paid enrollments.
type EnrollmentSyncHandler struct {
	enabled bool
	sender  EnrollmentSender
}

func NewEnrollmentSyncHandler(enabled bool, sender EnrollmentSender) *EnrollmentSyncHandler {
	return &EnrollmentSyncHandler{enabled: enabled, sender: sender}
}

func (h *EnrollmentSyncHandler) Name() string { return "enrollment_sync" }

func (h *EnrollmentSyncHandler) Handle(ctx context.Context, ev OrderPlaced) error {
	if !h.enabled || len(ev.Order.Lines) == 0 || ev.Order.TotalExclTaxCents <= 0 {
		return nil
	}
	line := ev.Order.Lines[0]
	return h.sender.UpdateCourseEnrollment(ctx, tasks.CourseEnrollment{
		Email:         ev.User.Email,
		CourseURL:     CourseURL(ev.Site, line.CourseID),
		Mode:          line.SeatType,
		UnitCostCents: ev.Order.TotalExclTaxCents,
		CourseID:      line.CourseID,
		Currency:      ev.Order.Currency,
		SiteCode:      ev.Site.PartnerCode,
		MessageID:     ev.MessageID,
	})
}

// CourseURL is the LMS info page of a course.
func CourseURL(site domain.Site, courseID string) string {
	return strings.TrimRight(site.LMSURL, "/") + "/courses/" + courseID + "/info"
}
