package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paquetebot/paquetebot-backend/pkg/enums"
)

// LineItem is one product/quantity/total triple within a manifest. LineTotal
// is the amount for the whole line, entered by the customer, not unit price.
type LineItem struct {
	Product   string          `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// LineItems is stored as a jsonb document, mirroring the embedded-array
// layout the conversational flow works with.
type LineItems []LineItem

// Sum returns the total across all line totals.
func (items LineItems) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

// Order is one shipment manifest. Once it leaves draft, only status and
// tracking fields may change; items and totals are frozen.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	ClientPhone string            `gorm:"column:client_phone;index;not null"`
	Items       LineItems         `gorm:"column:items;type:jsonb;serializer:json"`
	TotalSum    decimal.Decimal   `gorm:"column:total_sum;type:numeric;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null;default:'draft';index"`

	TrackingNumber *string `gorm:"column:tracking_number"`
	TrackingURL    *string `gorm:"column:tracking_url"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
