package ledger

import (
	"context"

	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
)

// NoopExporter stands in when the spreadsheet integration is disabled.
// Finalize still succeeds; the skipped export is logged at debug-friendly
// info level so local runs show the would-be rows.
type NoopExporter struct {
	logg *logger.Logger
}

// NewNoopExporter builds the disabled-ledger exporter.
func NewNoopExporter(logg *logger.Logger) *NoopExporter {
	return &NoopExporter{logg: logg}
}

func (e *NoopExporter) AppendOrder(ctx context.Context, order *models.Order) error {
	if e.logg != nil && order != nil {
		ctx = e.logg.WithOrderID(ctx, order.ID.String())
		e.logg.Info(ctx, "ledger export disabled, skipping append")
	}
	return nil
}
