package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/intake"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
)

// Executions are append-only, so they are stored as-is: the struct already
// defines its JSON shape and id.ID round-trips as text.

func (s *Store) CreateExecution(ctx context.Context, exe *execution.Execution) error {
	if err := s.setEntity(ctx, entityKey(prefixExecution, exe.ID.String()), exe); err != nil {
		return fmt.Errorf("intake/redis: create execution: %w", err)
	}

	epID := exe.EndpointID.String()
	member := goredis.Z{Score: scoreFromTime(exe.CreatedAt), Member: exe.ID.String()}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, executionSetKey(epID, ""), member)
	pipe.ZAdd(ctx, executionSetKey(epID, exe.Status), member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("intake/redis: index execution: %w", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, exeID id.ID) (*execution.Execution, error) {
	var exe execution.Execution
	if err := s.getEntity(ctx, entityKey(prefixExecution, exeID.String()), &exe); err != nil {
		if isNotFound(err) {
			return nil, intake.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("intake/redis: get execution: %w", err)
	}
	return &exe, nil
}

func (s *Store) ListExecutions(ctx context.Context, endpointID id.ID, opts execution.ListOpts) ([]*execution.Execution, error) {
	key := executionSetKey(endpointID.String(), opts.Status)

	var (
		ids []string
		err error
	)
	if opts.From != nil || opts.To != nil {
		rng := &goredis.ZRangeBy{Min: "-inf", Max: "+inf", Offset: int64(opts.Offset), Count: -1}
		if opts.From != nil {
			rng.Min = fmt.Sprintf("%f", scoreFromTime(*opts.From))
		}
		if opts.To != nil {
			rng.Max = fmt.Sprintf("%f", scoreFromTime(*opts.To))
		}
		if opts.Limit > 0 {
			rng.Count = int64(opts.Limit)
		}
		ids, err = s.rdb.ZRevRangeByScore(ctx, key, rng).Result()
	} else {
		stop := int64(-1)
		if opts.Limit > 0 {
			stop = int64(opts.Offset + opts.Limit - 1)
		}
		ids, err = s.rdb.ZRevRange(ctx, key, int64(opts.Offset), stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("intake/redis: list executions: %w", err)
	}

	result := make([]*execution.Execution, 0, len(ids))
	for _, exeID := range ids {
		var exe execution.Execution
		if err := s.getEntity(ctx, entityKey(prefixExecution, exeID), &exe); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("intake/redis: list executions get: %w", err)
		}
		result = append(result, &exe)
	}
	return result, nil
}

func (s *Store) CountExecutions(ctx context.Context, endpointID id.ID, status string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, executionSetKey(endpointID.String(), status)).Result()
	if err != nil {
		return 0, fmt.Errorf("intake/redis: count executions: %w", err)
	}
	return n, nil
}
