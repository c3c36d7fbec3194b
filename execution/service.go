package execution

import (
	"context"
	"log/slog"

	"github.com/xraph/intake/id"
)

// Service provides read access to the execution log and the append path the
// engine records through.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new execution service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Record appends an execution entry. A failed append is logged and swallowed:
// the pipeline outcome must never be masked by log bookkeeping.
func (svc *Service) Record(ctx context.Context, exe *Execution) {
	if err := svc.store.CreateExecution(ctx, exe); err != nil {
		svc.logger.ErrorContext(ctx, "failed to record execution",
			"endpoint_id", exe.EndpointID,
			"status", exe.Status,
			"error", err,
		)
	}
}

// Get returns an execution by ID.
func (svc *Service) Get(ctx context.Context, exeID id.ID) (*Execution, error) {
	return svc.store.GetExecution(ctx, exeID)
}

// List returns executions for an endpoint, newest first.
func (svc *Service) List(ctx context.Context, endpointID id.ID, opts ListOpts) ([]*Execution, error) {
	return svc.store.ListExecutions(ctx, endpointID, opts)
}

// Count returns the number of executions for an endpoint, optionally
// filtered by status.
func (svc *Service) Count(ctx context.Context, endpointID id.ID, status string) (int64, error) {
	return svc.store.CountExecutions(ctx, endpointID, status)
}
