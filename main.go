package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketstore/config"
	"marketstore/internal/timezone"
	"marketstore/logger"
	"marketstore/models"
	"marketstore/normalizer"
	"marketstore/reader/yahoo"
	"marketstore/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	symbolsFlag := flag.String("symbols", "", "Comma-separated instrument symbols to ingest")
	startFlag := flag.String("start", "", "Earliest date to download (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "Latest date to download (default: today)")
	intraday := flag.Bool("intraday", false, "Download 1-minute bars instead of daily history")
	backend := flag.String("backend", "", "Storage backend name (default: auto-detect)")
	csvDir := flag.String("csv", "", "Directory for CSV output (skipped when empty)")
	skipStore := flag.Bool("no-store", false, "Normalize only, skip database persistence")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	if cfg.Logging.CloudWatch {
		logger.InitCloudWatch(cfg.Logging.CWRegion, cfg.Logging.CWNamespace)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Marketstore.Name,
		"version": cfg.Marketstore.Version,
	}).Info("starting marketstore")

	symbols := splitSymbols(*symbolsFlag)
	if len(symbols) == 0 {
		log.Error("no symbols given, nothing to ingest")
		os.Exit(1)
	}

	start, end, err := parseRange(*startFlag, *endFlag)
	if err != nil {
		log.WithError(err).Error("invalid date range")
		os.Exit(1)
	}

	ctx := context.Background()
	client := yahoo.NewClient(cfg, log)
	store := writer.New(cfg, log)

	if !*skipStore {
		if err := store.Prepare(ctx, *backend); err != nil {
			log.WithError(err).Error("failed to prepare storage backend")
			os.Exit(1)
		}
	}

	outputDir := *csvDir
	if outputDir == "" {
		outputDir = cfg.Normalizer.OutputDir
	}

	failed := false
	for _, sym := range symbols {
		err := ingest(ctx, client, store, cfg, log, sym, start, end, *intraday, *backend, outputDir, *skipStore)
		var disabled *writer.BackendDisabledError
		if errors.As(err, &disabled) {
			log.WithFields(logger.Fields{"symbol": sym, "backend": disabled.Backend}).Warn("backend skips storage, data not persisted")
			continue
		}
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Error("ingest failed")
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func ingest(ctx context.Context, client *yahoo.Client, store *writer.Writer, cfg *config.Config, log *logger.Log,
	symbol string, start, end time.Time, intraday bool, backend, csvDir string, skipStore bool) error {

	var (
		raw *models.Table
		err error
	)
	if intraday {
		raw, err = client.Intraday(ctx, symbol, "")
	} else {
		raw, err = client.Daily(ctx, []string{symbol}, start, end)
	}
	if err != nil {
		return err
	}

	table, err := normalizer.PrepareData(models.Instrument{Symbol: symbol}, raw, normalizer.Options{
		Kind:       models.KindBar,
		OutputDir:  csvDir,
		OptionFill: cfg.Normalizer.OptionFill,
		Log:        log,
	})
	if err != nil {
		return err
	}

	if skipStore {
		return nil
	}
	return store.Store(ctx, table, models.KindBar, backend)
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if sym := strings.TrimSpace(part); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	var startTs, endTs time.Time
	var err error
	if start != "" {
		if startTs, err = timezone.Parse(start); err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		startTs = time.Now().AddDate(-1, 0, 0)
	}
	if end != "" {
		if endTs, err = timezone.Parse(end); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return startTs, endTs, nil
}
