package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/elnosh/walletgen/crypto"
	"github.com/elnosh/walletgen/customer"
	"github.com/elnosh/walletgen/testutils"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() Config {
	config := DefaultConfig()
	config.LogLevel = Disable
	return config
}

func TestPipelineEndToEnd(t *testing.T) {
	seed, err := crypto.NewSeed(testutils.TestMnemonic)
	require.NoError(t, err)

	zeros, ones := strings.Repeat("0", 64), strings.Repeat("1", 64)
	source := testutils.NewSliceSource([]string{zeros, ones, zeros})
	sink := &testutils.MemorySink{}

	config := testConfig()
	config.Workers = 1
	pipeline, err := NewPipeline(config, SeedDerivers(seed), discardLogger)
	require.NoError(t, err)

	summary, err := pipeline.Run(context.Background(), source, sink)
	require.NoError(t, err)
	require.Equal(t, Summary{Read: 3, Succeeded: 2, Failed: 1, Windows: 1, Tracked: 2}, summary)

	require.Len(t, sink.Records, 3)
	require.Equal(t, zeros, sink.Records[0].CustomerID)
	require.False(t, sink.Records[0].Failed())
	require.Equal(t, "0xB5d2499Bb10eB5b5EB31532262575Bd68c53D0F7", sink.Records[0].Address)
	require.Equal(t, ones, sink.Records[1].CustomerID)
	require.False(t, sink.Records[1].Failed())
	require.Equal(t, "0x8EbFE637DCbfE4feAD5B4b1b6c8Ac054e91D367c", sink.Records[1].Address)
	require.Equal(t, zeros, sink.Records[2].CustomerID)
	require.Equal(t, "Duplicated Customer ID", sink.Records[2].Reason())

	// same seed, same addresses on another run
	hdwallet, err := seed.HDWallet()
	require.NoError(t, err)
	path, err := customer.DerivationPath(zeros)
	require.NoError(t, err)
	address, err := hdwallet.DeriveAddress(path)
	require.NoError(t, err)
	require.Equal(t, address, sink.Records[0].Address)
}

func TestPipelineWindowing(t *testing.T) {
	const (
		total      = 23
		windowSize = 5
		writeBatch = 2
	)

	ids := testutils.CustomerIDs(total)
	source := testutils.NewSliceSource(ids)
	written := 0
	sink := &testutils.MemorySink{
		OnWrite: func(batch []customer.Record) error {
			// IDs read from the source but not yet written never exceed a window
			pending := source.Read() - written
			if pending > windowSize {
				return fmt.Errorf("%d customer IDs held in memory", pending)
			}
			if len(batch) > writeBatch {
				return fmt.Errorf("write of %d records", len(batch))
			}
			written += len(batch)
			return nil
		},
	}

	config := testConfig()
	config.WindowSize = windowSize
	config.WriteBatchSize = writeBatch
	config.Workers = 2
	config.SerialThreshold = 0
	pipeline, err := NewPipeline(config, newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)

	summary, err := pipeline.Run(context.Background(), source, sink)
	require.NoError(t, err)
	require.Equal(t, total, summary.Read)
	require.Equal(t, total, summary.Succeeded)
	require.Equal(t, 5, summary.Windows)

	require.Len(t, sink.Records, total)
	for i, record := range sink.Records {
		require.Equal(t, ids[i], record.CustomerID)
	}
	// 4 full windows of 2+2+1 and a final window of 2+1
	require.Equal(t, []int{2, 2, 1, 2, 2, 1, 2, 2, 1, 2, 2, 1, 2, 1}, sink.Writes)
}

func TestPipelineDedupAcrossWindows(t *testing.T) {
	a, b := testutils.CustomerID(1), testutils.CustomerID(2)
	ids := []string{a, b, a}

	config := testConfig()
	config.WindowSize = 2

	sink := &testutils.MemorySink{}
	pipeline, err := NewPipeline(config, newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)
	summary, err := pipeline.Run(context.Background(), testutils.NewSliceSource(ids), sink)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	require.True(t, sink.Records[2].Failed())

	config.DedupScope = ShardScope
	sink = &testutils.MemorySink{}
	pipeline, err = NewPipeline(config, newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)
	summary, err = pipeline.Run(context.Background(), testutils.NewSliceSource(ids), sink)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Failed)
}

func TestPipelineDedupScopeMemory(t *testing.T) {
	ids := testutils.CustomerIDs(23)

	tests := []struct {
		scope   DedupScope
		tracked int
	}{
		// every distinct ID stays in the run-wide guard
		{scope: RunScope, tracked: len(ids)},
		{scope: ShardScope, tracked: 0},
	}

	for _, test := range tests {
		config := testConfig()
		config.WindowSize = 5
		config.DedupScope = test.scope

		pipeline, err := NewPipeline(config, newFakeDeriver().factory(), discardLogger)
		require.NoError(t, err)
		summary, err := pipeline.Run(context.Background(), testutils.NewSliceSource(ids), &testutils.MemorySink{})
		require.NoError(t, err)
		require.Equal(t, test.tracked, summary.Tracked, test.scope.String())
	}
}

func TestPipelineInvalidIDs(t *testing.T) {
	ids := []string{testutils.CustomerID(1), "short", "zz" + strings.Repeat("0", 62)}
	sink := &testutils.MemorySink{}

	pipeline, err := NewPipeline(testConfig(), newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)
	summary, err := pipeline.Run(context.Background(), testutils.NewSliceSource(ids), sink)
	require.NoError(t, err)
	require.Equal(t, Summary{Read: 3, Succeeded: 1, Failed: 2, Windows: 1, Tracked: 3}, summary)
	require.Equal(t, customer.InvalidIDErrCode, sink.Records[1].Err.Code)
	require.Equal(t, customer.InvalidIDErrCode, sink.Records[2].Err.Code)
}

func TestPipelineNoCustomerIDs(t *testing.T) {
	sink := &testutils.MemorySink{}
	pipeline, err := NewPipeline(testConfig(), newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)

	_, err = pipeline.Run(context.Background(), testutils.NewSliceSource(nil), sink)
	require.ErrorIs(t, err, ErrNoCustomerIDs)
	require.Empty(t, sink.Writes)
}

func TestPipelineSourceError(t *testing.T) {
	readErr := errors.New("corrupt row")
	source := testutils.NewSliceSource(testutils.CustomerIDs(10))
	source.Err = readErr
	source.ErrAt = 7

	config := testConfig()
	config.WindowSize = 5
	sink := &testutils.MemorySink{}
	pipeline, err := NewPipeline(config, newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)

	_, err = pipeline.Run(context.Background(), source, sink)
	require.ErrorIs(t, err, readErr)
	require.Len(t, sink.Records, 5)
}

func TestPipelineWorkerFailureAbortsRun(t *testing.T) {
	ids := testutils.CustomerIDs(10)
	deriver := newFakeDeriver()
	deriver.panicOn[pathOf(t, ids[6])] = true

	config := testConfig()
	config.WindowSize = 5
	config.SerialThreshold = 0
	sink := &testutils.MemorySink{}
	pipeline, err := NewPipeline(config, deriver.factory(), discardLogger)
	require.NoError(t, err)

	_, err = pipeline.Run(context.Background(), testutils.NewSliceSource(ids), sink)
	require.ErrorIs(t, err, ErrWorkerFailed)
	// only the first window made it out, none of the failed one
	require.Len(t, sink.Records, 5)
}

func TestPipelineSinkError(t *testing.T) {
	sinkErr := errors.New("disk full")
	sink := &testutils.MemorySink{
		OnWrite: func([]customer.Record) error { return sinkErr },
	}

	pipeline, err := NewPipeline(testConfig(), newFakeDeriver().factory(), discardLogger)
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background(), testutils.NewSliceSource(testutils.CustomerIDs(3)), sink)
	require.ErrorIs(t, err, sinkErr)
}

func TestNewPipelineInvalidConfig(t *testing.T) {
	config := testConfig()
	config.WindowSize = 0

	_, err := NewPipeline(config, newFakeDeriver().factory(), discardLogger)
	require.Error(t, err)
}

func TestParseConfigValues(t *testing.T) {
	scope, err := ParseDedupScope("SHARD")
	require.NoError(t, err)
	require.Equal(t, ShardScope, scope)
	require.Equal(t, "shard", scope.String())

	_, err = ParseDedupScope("global")
	require.Error(t, err)

	level, err := ParseLogLevel("debug")
	require.NoError(t, err)
	require.Equal(t, Debug, level)

	_, err = ParseLogLevel("loud")
	require.Error(t, err)
}
