package execution

import (
	"context"

	"github.com/xraph/intake/id"
)

// Store defines the persistence contract for execution log entries.
type Store interface {
	// CreateExecution appends an execution record.
	CreateExecution(ctx context.Context, exe *Execution) error

	// GetExecution returns an execution by ID.
	GetExecution(ctx context.Context, exeID id.ID) (*Execution, error)

	// ListExecutions returns executions for an endpoint, newest first.
	ListExecutions(ctx context.Context, endpointID id.ID, opts ListOpts) ([]*Execution, error)

	// CountExecutions returns the number of executions for an endpoint,
	// optionally filtered by status.
	CountExecutions(ctx context.Context, endpointID id.ID, status string) (int64, error)
}
