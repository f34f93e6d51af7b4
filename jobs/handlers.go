package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/waa-mobile/waapos/internal/inventory"
	jobmetrics "github.com/waa-mobile/waapos/internal/jobs"
	"github.com/waa-mobile/waapos/internal/reports"
	"github.com/waa-mobile/waapos/internal/shared"
)

// StockSource lists low-stock items.
type StockSource interface {
	LowStock(ctx context.Context) ([]inventory.Item, error)
}

// ProfitSource computes a profit report.
type ProfitSource interface {
	Profit(ctx context.Context, from, to time.Time) (reports.Profit, error)
}

// ReceiptSource renders an invoice receipt PDF.
type ReceiptSource interface {
	RenderReceipt(ctx context.Context, number int64) ([]byte, error)
}

// KeySweeper drops stale idempotency keys.
type KeySweeper interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Jobs bundles the task handlers run by the worker.
type Jobs struct {
	Stock    StockSource
	Reports  ProfitSource
	Receipts ReceiptSource
	Keys     KeySweeper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handlers lists the task handlers for WorkerConfig.
func (j *Jobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLowStockScan, Handler: j.HandleLowStock},
		{Type: TaskDailySummary, Handler: j.HandleDailySummary},
		{Type: TaskReceiptRender, Handler: j.HandleReceiptRender},
		{Type: TaskIdempotencySweep, Handler: j.HandleIdempotencySweep},
	}
}

// HandleLowStock logs a warning per item at or below its reorder level.
func (j *Jobs) HandleLowStock(ctx context.Context, t *asynq.Task) (err error) {
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	run := j.Metrics.Start(TaskLowStockScan)
	defer func() { err = run.Finish(err) }()

	items, err := j.Stock.LowStock(ctx)
	if err != nil {
		return err
	}
	j.Metrics.SetLowStock(len(items))
	for _, item := range items {
		j.logger().Warn("low stock",
			slog.String("item", item.Name),
			slog.Int64("on_hand", item.QuantityOnHand),
			slog.Int64("min_stock", item.MinStock))
	}
	j.logger().Info("low stock scan complete", slog.Int("items", len(items)))
	return nil
}

// HandleDailySummary computes and logs the profit report of the payload day.
func (j *Jobs) HandleDailySummary(ctx context.Context, t *asynq.Task) (err error) {
	var payload DailySummaryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	run := j.Metrics.Start(TaskDailySummary)
	defer func() { err = run.Finish(err) }()

	p, err := j.Reports.Profit(ctx, payload.Date, payload.Date)
	if err != nil {
		return err
	}
	j.logger().Info("daily summary",
		slog.String("date", p.From.Format(time.DateOnly)),
		slog.Int64("invoices", p.Invoices),
		slog.String("sales", p.Sales.StringFixed(2)),
		slog.String("gross_profit", p.GrossProfit.StringFixed(2)),
		slog.String("expenses", p.Expenses.StringFixed(2)),
		slog.String("net_profit", p.NetProfit.StringFixed(2)),
		slog.String("returns", p.Returns.StringFixed(2)))
	return nil
}

// HandleReceiptRender renders a receipt and logs its size. Missing invoices are not retried.
func (j *Jobs) HandleReceiptRender(ctx context.Context, t *asynq.Task) (err error) {
	var payload ReceiptRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	run := j.Metrics.Start(TaskReceiptRender)
	defer func() { err = run.Finish(err) }()

	pdf, err := j.Receipts.RenderReceipt(ctx, payload.InvoiceNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	j.logger().Info("receipt rendered", slog.Int64("invoice", payload.InvoiceNumber), slog.Int("bytes", len(pdf)))
	return nil
}

// HandleIdempotencySweep removes keys older than the payload retention. A non-positive
// retention is rejected so a bad payload cannot wipe the table.
func (j *Jobs) HandleIdempotencySweep(ctx context.Context, t *asynq.Task) (err error) {
	var payload IdempotencySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.Retention <= 0 {
		return fmt.Errorf("%w: retention must be positive", asynq.SkipRetry)
	}
	run := j.Metrics.Start(TaskIdempotencySweep)
	defer func() { err = run.Finish(err) }()

	removed, err := j.Keys.Cleanup(ctx, payload.Retention)
	if err != nil {
		return err
	}
	j.logger().Info("idempotency keys swept", slog.Int64("removed", removed), slog.Duration("retention", payload.Retention))
	return nil
}

func (j *Jobs) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
