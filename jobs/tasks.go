package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan lists items at or below their reorder level.
	TaskLowStockScan = "stock:low-scan"
	// TaskDailySummary logs the profit report of one day.
	TaskDailySummary = "reports:daily-summary"
	// TaskReceiptRender renders an invoice receipt through Gotenberg.
	TaskReceiptRender = "sales:receipt-render"
	// TaskIdempotencySweep deletes idempotency keys past their retention.
	TaskIdempotencySweep = "maintenance:idempotency-sweep"
)

// LowStockPayload carries scheduling metadata.
type LowStockPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// DailySummaryPayload names the day to summarise. A zero Date means today.
type DailySummaryPayload struct {
	Date time.Time `json:"date"`
}

// ReceiptRenderPayload names the invoice to render.
type ReceiptRenderPayload struct {
	InvoiceNumber int64 `json:"invoice_number"`
}

// IdempotencySweepPayload sets how long keys are kept.
type IdempotencySweepPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewLowStockTask constructs a low-stock scan task.
func NewLowStockTask(at time.Time) (*asynq.Task, error) {
	return newTask(TaskLowStockScan, LowStockPayload{ScheduledFor: at})
}

// NewDailySummaryTask constructs a daily summary task for day.
func NewDailySummaryTask(day time.Time) (*asynq.Task, error) {
	return newTask(TaskDailySummary, DailySummaryPayload{Date: day})
}

// NewReceiptRenderTask constructs a receipt render task.
func NewReceiptRenderTask(number int64) (*asynq.Task, error) {
	return newTask(TaskReceiptRender, ReceiptRenderPayload{InvoiceNumber: number}, asynq.MaxRetry(5))
}

// NewIdempotencySweepTask constructs a key sweep keeping the last retention of keys.
func NewIdempotencySweepTask(retention time.Duration) (*asynq.Task, error) {
	return newTask(TaskIdempotencySweep, IdempotencySweepPayload{Retention: retention})
}

func newTask(typename string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, body, append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)...), nil
}
