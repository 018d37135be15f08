// Package backend selects the report export backend from the
// application configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gestionale/internal/config"
	"gestionale/internal/export"
	"gestionale/internal/export/google"
	"gestionale/internal/export/memory"
)

// Type names a report backend.
type Type string

const (
	Memory Type = "memory"
	Sheets Type = "sheets"
)

func (t Type) IsValid() bool {
	return t == Memory || t == Sheets
}

// New builds the export writer named by cfg.ExportBackend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (export.Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch Type(cfg.ExportBackend) {
	case Memory:
		logger.Info("Initialized memory export backend")
		return memory.New(), nil

	case Sheets:
		cli, err := google.New(ctx, google.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetBase:       cfg.GoogleSheetName,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize sheets backend: %w", err)
		}
		logger.Info("Initialized Google Sheets export backend",
			"spreadsheet_id", cfg.GoogleSpreadsheetID)
		return cli, nil

	default:
		return nil, fmt.Errorf("unsupported export backend: %s", cfg.ExportBackend)
	}
}
