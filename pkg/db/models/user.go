package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/paquetebot/paquetebot-backend/pkg/enums"
)

// User is one channel identity talking to the bot. The same person reaching
// us on Telegram and WhatsApp shows up as two separate users; order history
// is joined through the denormalized phone, not through identity.
type User struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TelegramID *int64    `gorm:"column:telegram_id;uniqueIndex"`
	WhatsAppID *string   `gorm:"column:whatsapp_id;uniqueIndex"`
	Phone      *string   `gorm:"column:phone;index"`

	Role enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`

	ConversationState enums.ConversationState `gorm:"column:conversation_state;type:text;not null;default:'idle'"`
	OrderBuffer       LineItems               `gorm:"column:order_buffer;type:jsonb;serializer:json"`
	PendingDraftID    *uuid.UUID              `gorm:"column:pending_draft_order_id;type:uuid"`

	AdminState            enums.AdminState `gorm:"column:admin_state;type:text;not null;default:'idle'"`
	PendingAdminOrderID   *uuid.UUID       `gorm:"column:pending_admin_order_id;type:uuid"`
	PendingTrackingNumber *string          `gorm:"column:pending_tracking_number"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Channel derives the messaging platform from the populated identity column.
func (u *User) Channel() enums.Channel {
	if u.TelegramID != nil {
		return enums.ChannelTelegram
	}
	return enums.ChannelWhatsApp
}

// IsAdmin reports whether the user may enter the admin workflow.
func (u *User) IsAdmin() bool {
	return u.Role == enums.UserRoleAdmin
}
