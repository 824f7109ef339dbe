package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries supplier payment notifications.
	QueueCritical = "critical"

	// TaskPaymentNotify tells a supplier that a payment voucher was paid.
	TaskPaymentNotify = "payment:notify"
	// TaskOverdueScan refreshes the overdue voucher gauges.
	TaskOverdueScan = "bkk:overdue-scan"
	// TaskLowStockScan reports stock cards at or below their minimum.
	TaskLowStockScan = "stock:low-scan"
)

// NewPaymentNotifyTask wraps a settled payment in an Asynq task.
func NewPaymentNotifyTask(notice ap.PaymentNotice) (*asynq.Task, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentNotify, data, asynq.Queue(QueueCritical), asynq.MaxRetry(5)), nil
}

// NewOverdueScanTask builds the periodic overdue scan task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil, asynq.Queue(QueueDefault))
}

// NewLowStockScanTask builds the periodic stock scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil, asynq.Queue(QueueDefault))
}
