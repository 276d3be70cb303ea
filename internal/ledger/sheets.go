package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/paquetebot/paquetebot-backend/pkg/config"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
)

// SheetsExporter appends finalized orders to a Google Sheets spreadsheet,
// one row per order: timestamp, client phone, flattened item list, total,
// status. Rows are append-only; repeated appends duplicate.
type SheetsExporter struct {
	svc           *sheets.Service
	spreadsheetID string
	writeRange    string
	location      *time.Location
}

// NewSheetsExporter builds the spreadsheet client from deploy config.
func NewSheetsExporter(ctx context.Context, cfg config.SheetsConfig, logg *logger.Logger) (*SheetsExporter, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets spreadsheet id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	// ledger timestamps follow the operator's timezone
	location, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		location = time.UTC
	}

	if logg != nil {
		logg.Info(ctx, "sheets exporter initialized")
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		writeRange:    cfg.Range,
		location:      location,
	}, nil
}

// AppendOrder writes one ledger row for the order.
func (e *SheetsExporter) AppendOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}

	row := []any{
		time.Now().In(e.location).Format("02.01.2006 15:04:05"),
		order.ClientPhone,
		FlattenItems(order.Items),
		order.TotalSum.String(),
		order.Status.String(),
	}

	_, err := e.svc.Spreadsheets.Values.
		Append(e.spreadsheetID, e.writeRange, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending ledger row: %w", err)
	}
	return nil
}

// FlattenItems renders the item list as one spreadsheet cell.
func FlattenItems(items models.LineItems) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s (%d pcs) (%s€)", item.Product, item.Quantity, item.LineTotal.String()))
	}
	return strings.Join(parts, ", ")
}
