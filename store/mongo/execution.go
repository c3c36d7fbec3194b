package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/intake"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
)

// CreateExecution appends an execution log entry.
func (s *Store) CreateExecution(ctx context.Context, exe *execution.Execution) error {
	m := toExecutionModel(exe)

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("intake/mongo: create execution: %w", err)
	}

	return nil
}

// GetExecution returns an execution by ID.
func (s *Store) GetExecution(ctx context.Context, exeID id.ID) (*execution.Execution, error) {
	var m executionModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": exeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, intake.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("intake/mongo: get execution: %w", err)
	}

	return fromExecutionModel(&m)
}

// ListExecutions returns executions for an endpoint, newest first.
func (s *Store) ListExecutions(ctx context.Context, endpointID id.ID, opts execution.ListOpts) ([]*execution.Execution, error) {
	filter := bson.M{"endpoint_id": endpointID.String()}

	if opts.Status != "" {
		filter["status"] = opts.Status
	}

	if opts.From != nil || opts.To != nil {
		window := bson.M{}
		if opts.From != nil {
			window["$gte"] = *opts.From
		}

		if opts.To != nil {
			window["$lte"] = *opts.To
		}

		filter["created_at"] = window
	}

	var models []executionModel

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("intake/mongo: list executions: %w", err)
	}

	result := make([]*execution.Execution, 0, len(models))

	for i := range models {
		exe, err := fromExecutionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, exe)
	}

	return result, nil
}

// CountExecutions returns the number of executions for an endpoint,
// optionally filtered by status.
func (s *Store) CountExecutions(ctx context.Context, endpointID id.ID, status string) (int64, error) {
	filter := bson.M{"endpoint_id": endpointID.String()}
	if status != "" {
		filter["status"] = status
	}

	count, err := s.mdb.NewFind((*executionModel)(nil)).
		Filter(filter).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("intake/mongo: count executions: %w", err)
	}

	return count, nil
}
