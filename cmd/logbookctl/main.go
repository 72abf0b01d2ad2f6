package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"logbook/chain"
	"logbook/cmd/internal/stack"
	"logbook/config"
	"logbook/core/projection"
	"logbook/integrations/exports"
	"logbook/storage/entitystore"
)

const (
	replayCommand = "replay"
	getCommand    = "get"
	exportCommand = "export"
	fetchCommand  = "fetch"
	initCommand   = "init"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case replayCommand:
		err = runReplay(context.Background(), os.Args[2:], os.Stdout)
	case getCommand:
		err = runGet(os.Args[2:], os.Stdout)
	case exportCommand:
		err = runExport(os.Args[2:], os.Stdout)
	case fetchCommand:
		err = runFetch(context.Background(), os.Args[2:], os.Stdout)
	case initCommand:
		err = runInit(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: logbookctl <command> [flags] <args>

Commands:
  replay <events.jsonl>                 apply an event file to the configured store
  get <kind> <id>                       print one entity as JSON
  export <kind> <csv|jsonl|parquet> <out>  dump every entity of a kind
  fetch <from> <to> <out.jsonl>         download contract events into an event file
  init <config.toml>                    write a default configuration file

Every command except init accepts -config <path>.`)
}

func loadConfig(path string) (config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openStore(cfg config.Config) (*entitystore.Store, func(), error) {
	db, err := stack.OpenStore(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return entitystore.New(db), db.Close, nil
}

func runReplay(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(replayCommand, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the logbook configuration file")
	offline := fs.Bool("offline", false, "skip contract reads even when rpc_url is configured")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("replay requires an event file")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := stack.Logger("logbookctl", cfg)
	if err != nil {
		return err
	}
	source, err := chain.OpenFileSource(fs.Arg(0))
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var reader projection.ContractReader
	if !*offline && cfg.Chain.RPCURL != "" {
		client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()
		evmReader, err := chain.NewEVMReader(client, logger, nil)
		if err != nil {
			return err
		}
		reader = evmReader
	}
	mode, err := stack.DonationIDs(cfg)
	if err != nil {
		return err
	}
	dispatcher, err := projection.New(projection.Config{Store: store, Reader: reader, Logger: logger, DonationIDs: mode})
	if err != nil {
		return err
	}
	var through uint64
	runner, err := projection.NewRunner(projection.RunnerConfig{
		Dispatcher:   dispatcher,
		Store:        store,
		Source:       source,
		Logger:       logger,
		OnCheckpoint: func(block uint64) { through = block },
	})
	if err != nil {
		return err
	}
	if err := runner.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "replayed through block %d\n", through)
	return nil
}

func runGet(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(getCommand, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the logbook configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("get requires <kind> <id>")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	kind, id := fs.Arg(0), fs.Arg(1)
	var doc json.RawMessage
	found, err := store.Load(kind, id, &doc)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(exportCommand, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the logbook configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("export requires <kind> <format> <out>")
	}
	format, err := exports.ParseFormat(fs.Arg(1))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := exports.WriteFile(store, fs.Arg(0), format, fs.Arg(2))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d %s rows sha256=%s\n", result.Path, result.Rows, result.Kind, result.Checksum)
	return nil
}

func runFetch(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(fetchCommand, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the logbook configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("fetch requires <from> <to> <out.jsonl>")
	}
	from, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("from block: %w", err)
	}
	to, err := strconv.ParseUint(fs.Arg(1), 10, 64)
	if err != nil {
		return fmt.Errorf("to block: %w", err)
	}
	if to < from {
		return fmt.Errorf("to block %d precedes from block %d", to, from)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateChain(); err != nil {
		return err
	}
	logger, err := stack.Logger("logbookctl", cfg)
	if err != nil {
		return err
	}
	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()
	source, err := chain.NewSource(client, chain.SourceConfig{
		Contract:      cfg.ContractAddress(),
		Confirmations: cfg.Chain.Confirmations,
		BatchBlocks:   cfg.Chain.BatchBlocks,
		RPS:           cfg.Chain.RPS,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	file, err := os.Create(fs.Arg(2))
	if err != nil {
		return err
	}
	defer file.Close()

	total := 0
	for next := from; next <= to; {
		batch, err := source.Fetch(ctx, next)
		if errors.Is(err, projection.ErrNoNewBlocks) {
			break
		}
		if err != nil {
			return err
		}
		kept := batch.Events[:0]
		for _, evt := range batch.Events {
			if evt.Metadata().BlockNumber <= to {
				kept = append(kept, evt)
			}
		}
		if err := chain.WriteEvents(file, kept); err != nil {
			return err
		}
		total += len(kept)
		next = batch.Through + 1
	}
	logger.Debug("fetch complete", slog.Int("events", total))
	fmt.Fprintf(out, "wrote %d events to %s\n", total, fs.Arg(2))
	return nil
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(initCommand, flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("init requires a destination path")
	}
	path := fs.Arg(0)
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists", path)
	}
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendLevelDB
	cfg.Storage.Path = "./logbook-data"
	cfg.Telemetry.MetricsListen = ":9102"
	if err := config.Persist(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}
