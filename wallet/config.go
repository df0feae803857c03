package wallet

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogLevel int

const (
	Info LogLevel = iota
	Debug
	Disable
)

func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	case "disable":
		return Disable, nil
	default:
		return Info, fmt.Errorf("invalid log level '%v'", level)
	}
}

// Logger returns a text logger on stderr for the level.
func (l LogLevel) Logger() *slog.Logger {
	switch l {
	case Debug:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case Disable:
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// DedupScope decides how far duplicate detection reaches.
type DedupScope int

const (
	// RunScope catches a repeated customer ID anywhere in the input. It
	// holds every distinct ID in memory until the run ends.
	RunScope DedupScope = iota
	// ShardScope only catches repeats that land in the same worker shard.
	ShardScope
)

func ParseDedupScope(scope string) (DedupScope, error) {
	switch strings.ToLower(scope) {
	case "", "run":
		return RunScope, nil
	case "shard":
		return ShardScope, nil
	default:
		return RunScope, fmt.Errorf("invalid dedup scope '%v'", scope)
	}
}

func (s DedupScope) String() string {
	if s == ShardScope {
		return "shard"
	}
	return "run"
}

// Config holds the tunables of a run. None of them change the
// resulting addresses, only how the work is scheduled.
type Config struct {
	// number of customer IDs dispatched at once
	WindowSize int
	// max records handed to the sink per write
	WriteBatchSize int
	Workers        int
	// batches smaller than this are processed on the calling goroutine
	SerialThreshold int
	// log progress every this many customer IDs read
	ProgressThreshold int
	DedupScope        DedupScope
	LogLevel          LogLevel
}

func DefaultConfig() Config {
	return Config{
		WindowSize:        1000,
		WriteBatchSize:    1000,
		Workers:           4,
		SerialThreshold:   50,
		ProgressThreshold: 1000,
		DedupScope:        RunScope,
		LogLevel:          Info,
	}
}

func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be positive, got %v", c.WindowSize)
	}
	if c.WriteBatchSize < 1 {
		return fmt.Errorf("write batch size must be positive, got %v", c.WriteBatchSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("number of workers must be positive, got %v", c.Workers)
	}
	if c.SerialThreshold < 0 {
		return fmt.Errorf("serial threshold cannot be negative, got %v", c.SerialThreshold)
	}
	if c.ProgressThreshold < 0 {
		return fmt.Errorf("progress threshold cannot be negative, got %v", c.ProgressThreshold)
	}
	return nil
}
