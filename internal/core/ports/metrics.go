package ports

import (
	"time"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
)

// OperationMetrics records engine-level measurements.
type OperationMetrics interface {
	ObserveOperation(op operation.Name, outcome string, d time.Duration)
	IncTxConflict(op operation.Name)
	IncTxRetry(op operation.Name)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) ObserveOperation(operation.Name, string, time.Duration) {}
func (NoopMetrics) IncTxConflict(operation.Name)                           {}
func (NoopMetrics) IncTxRetry(operation.Name)                              {}
