// Package tasks hands asynchronous side effects (notifications, marketing
// enrollment sync) to workers over Kafka. Dispatch is fire-and-forget: the
// caller gets the publish error but never waits for the task to run.
package tasks

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
)

// Task names understood by the workers.
const (
	SendNotification       = "send_notification"
	UpdateCourseEnrollment = "update_course_enrollment"
)

// CreditReceiptNotification is the notification type sent after a credit
// seat purchase.
const CreditReceiptNotification = "CREDIT_RECEIPT"

// MessageWriter is the subset of *kafka.Writer used by the dispatcher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Task is the envelope published for every task.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// CreditReceipt are the arguments of a CREDIT_RECEIPT notification.
type CreditReceipt struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	SiteKey        string `json:"site"`
	CourseTitle    string `json:"course_title"`
	ReceiptPageURL string `json:"receipt_page_url"`
	CreditHours    int    `json:"credit_hours"`
	CreditProvider string `json:"credit_provider"`
}

// CourseEnrollment are the arguments of update_course_enrollment.
type CourseEnrollment struct {
	Email              string `json:"email"`
	CourseURL          string `json:"course_url"`
	PurchaseIncomplete bool   `json:"purchase_incomplete"`
	Mode               string `json:"mode"`
	UnitCostCents      int64  `json:"-"`
	CourseID           string `json:"course_id"`
	Currency           string `json:"currency"`
	SiteCode           string `json:"site_code"`
	MessageID          string `json:"message_id,omitempty"`
}

func (e CourseEnrollment) MarshalJSON() ([]byte, error) {
	type plain CourseEnrollment
	return json.Marshal(struct {
		plain
		UnitCost string `json:"unit_cost"`
	}{plain(e), decimal.New(e.UnitCostCents, -2).StringFixed(2)})
}

type Dispatcher struct {
	writer MessageWriter
	logger *log.Logger
	now    func() time.Time
}

// NewKafkaWriter returns a writer publishing to topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
}

func NewDispatcher(writer MessageWriter, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{writer: writer, logger: logger, now: time.Now}
}

// Dispatch publishes one task keyed by key, so tasks for the same key keep
// their order.
func (d *Dispatcher) Dispatch(ctx context.Context, name, key string, args any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", name, err)
	}
	task := Task{ID: uuid.NewString(), Name: name, Args: raw, EnqueuedAt: d.now().UTC()}
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "task_name", Value: []byte(name)},
		},
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("dispatch %s: %w", name, err)
	}
	d.logger.Printf("tasks: dispatched name=%s id=%s key=%s", name, task.ID, key)
	return nil
}

// SendCreditReceipt dispatches a CREDIT_RECEIPT notification.
func (d *Dispatcher) SendCreditReceipt(ctx context.Context, r CreditReceipt) error {
	return d.Dispatch(ctx, SendNotification, r.Username, struct {
		Type    string        `json:"notification_type"`
		Context CreditReceipt `json:"context"`
	}{CreditReceiptNotification, r})
}

func (d *Dispatcher) UpdateCourseEnrollment(ctx context.Context, e CourseEnrollment) error {
	return d.Dispatch(ctx, UpdateCourseEnrollment, e.Email, e)
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}
