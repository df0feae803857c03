package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/elnosh/walletgen/customer"
)

var ErrNoCustomerIDs = errors.New("no customer IDs found in input")

// Source yields trimmed, non-empty customer IDs one at a time and
// returns io.EOF when the input is exhausted.
type Source interface {
	Next() (string, error)
}

// Sink receives records in the order they should appear in the output.
type Sink interface {
	Write(records []customer.Record) error
}

type Summary struct {
	Read      int
	Succeeded int
	Failed    int
	Windows   int
	// distinct customer IDs held by the run-wide duplicate guard
	Tracked int
}

// Pipeline streams customer IDs from a source through the dispatcher in
// windows of WindowSize IDs. A window is written to the sink and dropped
// before the next one is read, so at most one window of IDs and records
// is held at a time.
//
// RunScope gives up that bound for dataset-wide duplicate detection: its
// guard keeps every distinct customer ID of the run. ShardScope keeps
// memory at O(WindowSize).
type Pipeline struct {
	config     Config
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewPipeline(config Config, derivers DeriverFactory, logger *slog.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		config:     config,
		dispatcher: NewDispatcher(derivers, config.Workers, config.SerialThreshold),
		logger:     logger,
	}, nil
}

// Run processes the whole source. Any error returned is fatal for the
// run and the sink contents must be discarded.
func (p *Pipeline) Run(ctx context.Context, source Source, sink Sink) (Summary, error) {
	var summary Summary

	var seen *DuplicateGuard
	if p.config.DedupScope == RunScope {
		seen = NewDuplicateGuard()
	}

	window := make([]string, 0, p.config.WindowSize)
	for {
		id, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("error reading input at customer ID %d: %w", summary.Read+1, err)
		}

		window = append(window, id)
		summary.Read++
		if p.config.ProgressThreshold > 0 && summary.Read%p.config.ProgressThreshold == 0 {
			p.logger.Info("reading customer IDs", slog.Int("read", summary.Read))
		}

		if len(window) == p.config.WindowSize {
			if err := p.flush(ctx, window, seen, sink, &summary); err != nil {
				return summary, err
			}
			window = window[:0]
		}
	}

	if len(window) > 0 {
		if err := p.flush(ctx, window, seen, sink, &summary); err != nil {
			return summary, err
		}
	}

	if seen != nil {
		summary.Tracked = seen.Len()
	}
	if summary.Read == 0 {
		return summary, ErrNoCustomerIDs
	}
	return summary, nil
}

func (p *Pipeline) flush(ctx context.Context, window []string, seen *DuplicateGuard, sink Sink, summary *Summary) error {
	records, err := p.dispatcher.Dispatch(ctx, window, seen)
	if err != nil {
		return fmt.Errorf("error processing window %d: %w", summary.Windows+1, err)
	}
	summary.Windows++

	for _, record := range records {
		if record.Failed() {
			summary.Failed++
			p.logger.Debug("customer ID failed",
				slog.String("customer_id", record.CustomerID),
				slog.String("reason", record.Reason()))
		} else {
			summary.Succeeded++
		}
	}

	for lo := 0; lo < len(records); lo += p.config.WriteBatchSize {
		hi := min(lo+p.config.WriteBatchSize, len(records))
		if err := sink.Write(records[lo:hi]); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	p.logger.Info("window written",
		slog.Int("window", summary.Windows),
		slog.Int("records", len(records)),
		slog.Int("total", summary.Succeeded+summary.Failed))
	return nil
}
