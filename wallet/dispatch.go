package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/elnosh/walletgen/customer"
	"golang.org/x/sync/errgroup"
)

var ErrWorkerFailed = errors.New("worker failed")

// Dispatcher splits a batch of customer IDs into contiguous shards and
// processes each shard on its own goroutine with its own deriver and
// duplicate guard.
type Dispatcher struct {
	derivers        DeriverFactory
	workers         int
	serialThreshold int
}

func NewDispatcher(derivers DeriverFactory, workers, serialThreshold int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		derivers:        derivers,
		workers:         workers,
		serialThreshold: serialThreshold,
	}
}

// Dispatch returns one record per id. Records of shard i precede those
// of shard i+1 and each shard keeps its input order, so the result is in
// input order.
//
// If seen is not nil it is consulted serially for every id before
// sharding, which extends duplicate detection past shard boundaries.
// Otherwise duplicates are only caught within a shard.
//
// Either all records are returned or none: a failing or panicking worker
// fails the whole batch.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string, seen *DuplicateGuard) ([]customer.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var firsts []bool
	if seen != nil {
		firsts = make([]bool, len(ids))
		for i, id := range ids {
			firsts[i] = seen.CheckAndMark(id)
		}
	}

	if len(ids) < d.serialThreshold || d.workers == 1 {
		return d.processShard(ctx, 0, ids, firsts)
	}

	shardSize := (len(ids) + d.workers - 1) / d.workers
	numShards := (len(ids) + shardSize - 1) / shardSize
	results := make([][]customer.Record, numShards)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numShards; i++ {
		lo := i * shardSize
		hi := min(lo+shardSize, len(ids))

		var shardFirsts []bool
		if firsts != nil {
			shardFirsts = firsts[lo:hi]
		}

		g.Go(func() error {
			records, err := d.processShard(gctx, i, ids[lo:hi], shardFirsts)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]customer.Record, 0, len(ids))
	for _, records := range results {
		merged = append(merged, records...)
	}
	return merged, nil
}

// processShard runs one worker. firsts, when set, holds the run-wide
// verdict for each id: false means it was already seen before.
func (d *Dispatcher) processShard(ctx context.Context, shard int, ids []string, firsts []bool) (records []customer.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("%w: shard %d panicked: %v", ErrWorkerFailed, shard, r)
		}
	}()

	deriver, err := d.derivers()
	if err != nil {
		return nil, fmt.Errorf("%w: shard %d: %v", ErrWorkerFailed, shard, err)
	}
	processor := NewProcessor(deriver)
	guard := NewDuplicateGuard()

	records = make([]customer.Record, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if firsts != nil && !firsts[i] {
			records = append(records, customer.Failure(id, customer.DuplicateIDError()))
			continue
		}
		records = append(records, processor.Process(id, guard))
	}
	return records, nil
}
