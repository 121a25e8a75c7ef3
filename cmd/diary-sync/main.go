package main

import (
	"os"

	"workdiary/internal/amqp"
	"workdiary/internal/backend"
	"workdiary/internal/cli"
	"workdiary/internal/config"
	"workdiary/internal/log"
	"workdiary/internal/source/google"
	"workdiary/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentImport)
	logger.Info("Starting diary-sync")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateSync)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheets, err := google.New(ctx, backend.SheetsOptions(backend.Config{
		GoogleSpreadsheetID:   cfg.GoogleSpreadsheetID,
		GoogleSheetName:       cfg.GoogleSheetName,
		GoogleCredentialsJSON: cfg.GoogleCredentialsJSON,
		GoogleCredentialsFile: cfg.GoogleCredentialsFile,
	}))
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var publisher worker.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
	} else {
		logger.Info("AMQP disabled - servers will notice changes when their cache expires")
	}

	w := worker.NewImportWorker(sheets, repo, publisher, config.BackendSheets)
	if err := w.Run(ctx, cfg.SyncInterval); err != nil {
		logger.Error("Import worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
