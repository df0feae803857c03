package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/elnosh/walletgen/crypto"
	"github.com/elnosh/walletgen/customer"
	"github.com/elnosh/walletgen/server"
	"github.com/elnosh/walletgen/wallet"
	"github.com/elnosh/walletgen/wallet/storage"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const phraseEnv = "CUSTOMERS_HDNODE_WALLET_PHRASE"

var (
	logger *slog.Logger
	seed   *crypto.Seed
)

func main() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("error loading .env file: %v", err)
	}

	app := &cli.App{
		Name:           "walletgen",
		Usage:          "derive a deterministic wallet address for every customer ID",
		Flags:          []cli.Flag{logLevelFlag},
		Before:         setup,
		DefaultCommand: generateCmd.Name,
		Commands: []*cli.Command{
			generateCmd,
			deriveCmd,
			serveCmd,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}

var logLevelFlag = &cli.StringFlag{
	Name:    "log-level",
	Usage:   "info, debug or disable",
	EnvVars: []string{"LOG_LEVEL"},
	Value:   "info",
}

// setup runs before any command and fails if the seed phrase is missing
// or invalid, before any file is touched.
func setup(ctx *cli.Context) error {
	level, err := wallet.ParseLogLevel(ctx.String(logLevelFlag.Name))
	if err != nil {
		return err
	}
	logger = level.Logger()
	slog.SetDefault(logger)

	seed, err = loadSeed()
	return err
}

func loadSeed() (*crypto.Seed, error) {
	phrase := os.Getenv(phraseEnv)
	if len(strings.TrimSpace(phrase)) == 0 {
		return nil, fmt.Errorf("%v environment variable is not set", phraseEnv)
	}

	seed, err := crypto.NewSeed(phrase)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", phraseEnv, err)
	}
	return seed, nil
}

const (
	inputFlag           = "input"
	outputFlag          = "output"
	windowSizeFlag      = "window-size"
	writeBatchSizeFlag  = "write-batch-size"
	workersFlag         = "workers"
	serialThresholdFlag = "serial-threshold"
	progressFlag        = "progress-threshold"
	dedupFlag           = "dedup"
)

var generateCmd = &cli.Command{
	Name:  "generate",
	Usage: "read customer IDs from a .csv or .xlsx file and write their wallet addresses",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    inputFlag,
			Usage:   "input file (.csv or .xlsx)",
			EnvVars: []string{"INPUT_FILE"},
			Value:   "input.xlsx",
		},
		&cli.StringFlag{
			Name:    outputFlag,
			Usage:   "output file (.csv, .xlsx or .db)",
			EnvVars: []string{"OUTPUT_FILE"},
			Value:   "output.xlsx",
		},
		&cli.IntFlag{
			Name:    windowSizeFlag,
			Usage:   "customer IDs read and dispatched at once",
			EnvVars: []string{"EXCEL_READ_BATCH_SIZE"},
			Value:   wallet.DefaultConfig().WindowSize,
		},
		&cli.IntFlag{
			Name:    writeBatchSizeFlag,
			Usage:   "records written to the output at once",
			EnvVars: []string{"EXCEL_WRITE_BATCH_SIZE"},
			Value:   wallet.DefaultConfig().WriteBatchSize,
		},
		&cli.IntFlag{
			Name:    workersFlag,
			Usage:   "number of parallel workers",
			EnvVars: []string{"NUM_THREADS"},
			Value:   wallet.DefaultConfig().Workers,
		},
		&cli.IntFlag{
			Name:    serialThresholdFlag,
			Usage:   "windows smaller than this are processed without workers",
			EnvVars: []string{"SERIAL_THRESHOLD"},
			Value:   wallet.DefaultConfig().SerialThreshold,
		},
		&cli.IntFlag{
			Name:    progressFlag,
			Usage:   "log progress every this many customer IDs (0 disables)",
			EnvVars: []string{"PROGRESS_THRESHOLD"},
			Value:   wallet.DefaultConfig().ProgressThreshold,
		},
		&cli.StringFlag{
			Name:    dedupFlag,
			Usage:   "duplicate detection scope: run (whole input, memory grows with the number of distinct customer IDs) or shard (per worker, memory bounded by the window size)",
			EnvVars: []string{"DEDUP_SCOPE"},
			Value:   wallet.DefaultConfig().DedupScope.String(),
		},
	},
	Action: generate,
}

func generate(ctx *cli.Context) error {
	config, err := generateConfig(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Info("starting wallet generation",
		slog.String("input", ctx.String(inputFlag)),
		slog.String("output", ctx.String(outputFlag)),
		slog.Int("workers", config.Workers),
		slog.String("dedup", config.DedupScope.String()))

	summary, err := generateAddresses(ctx.Context, config, wallet.SeedDerivers(seed),
		ctx.String(inputFlag), ctx.String(outputFlag), logger)
	if err != nil {
		return err
	}

	logger.Info("wallet generation completed",
		slog.Int("records", summary.Read),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("tracked", summary.Tracked),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func generateConfig(ctx *cli.Context) (wallet.Config, error) {
	config := wallet.DefaultConfig()
	config.WindowSize = ctx.Int(windowSizeFlag)
	config.WriteBatchSize = ctx.Int(writeBatchSizeFlag)
	config.Workers = ctx.Int(workersFlag)
	config.SerialThreshold = ctx.Int(serialThresholdFlag)
	config.ProgressThreshold = ctx.Int(progressFlag)

	scope, err := wallet.ParseDedupScope(ctx.String(dedupFlag))
	if err != nil {
		return config, err
	}
	config.DedupScope = scope

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid configuration: %v", err)
	}
	return config, nil
}

// generateAddresses streams inputPath through the pipeline into
// outputPath. The output file only appears if the whole run succeeds.
func generateAddresses(
	ctx context.Context,
	config wallet.Config,
	derivers wallet.DeriverFactory,
	inputPath, outputPath string,
	logger *slog.Logger,
) (wallet.Summary, error) {
	pipeline, err := wallet.NewPipeline(config, derivers, logger)
	if err != nil {
		return wallet.Summary{}, err
	}

	reader, err := storage.OpenReader(inputPath)
	if err != nil {
		return wallet.Summary{}, fmt.Errorf("error opening input file: %w", err)
	}
	defer reader.Close()

	writer, err := storage.CreateWriter(outputPath)
	if err != nil {
		return wallet.Summary{}, fmt.Errorf("error creating output file %q: %w", outputPath, err)
	}

	summary, err := pipeline.Run(ctx, reader, writer)
	if err != nil {
		writer.Abort()
		return summary, fmt.Errorf("error processing %q: %w", inputPath, err)
	}

	if err := writer.Commit(); err != nil {
		return summary, fmt.Errorf("error writing output file %q: %w", outputPath, err)
	}
	return summary, nil
}

var deriveCmd = &cli.Command{
	Name:      "derive",
	Usage:     "print the derivation path and wallet address of customer IDs",
	ArgsUsage: "[customer IDs...]",
	Action:    derive,
}

func derive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		return errors.New("specify at least one customer ID")
	}

	hdwallet, err := seed.HDWallet()
	if err != nil {
		return err
	}
	return printAddresses(os.Stdout, hdwallet, args.Slice())
}

// printAddresses writes one tab separated line per customer ID: the ID,
// its derivation path and its address, or ERROR and the reason.
func printAddresses(w io.Writer, deriver wallet.AddressDeriver, ids []string) error {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		path, err := customer.DerivationPath(id)
		if err != nil {
			if _, err := fmt.Fprintf(w, "%v\t%v\t%v\n", id, storage.ErrorAddress, err); err != nil {
				return err
			}
			continue
		}

		address, err := deriver.DeriveAddress(path)
		if err != nil {
			return fmt.Errorf("error deriving address for '%v': %v", id, err)
		}
		if _, err := fmt.Fprintf(w, "%v\t%v\t%v\n", id, path, address); err != nil {
			return err
		}
	}
	return nil
}

const listenFlag = "listen"

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "serve wallet address lookups over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    listenFlag,
			EnvVars: []string{"LISTEN_ADDR"},
			Value:   "127.0.0.1:8080",
		},
	},
	Action: serve,
}

func serve(ctx *cli.Context) error {
	s := server.SetupServer(ctx.String(listenFlag), wallet.SeedDerivers(seed), logger)

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Context.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return s.Shutdown(shutdownCtx)
	}
}
