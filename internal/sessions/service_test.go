package sessions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paquetebot/paquetebot-backend/pkg/config"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

type fakeRepo struct {
	findByTelegramID func(ctx context.Context, telegramID int64) (*models.User, error)
	findByWhatsAppID func(ctx context.Context, whatsappID string) (*models.User, error)
	findAdmins       func(ctx context.Context) ([]models.User, error)
	create           func(ctx context.Context, user *models.User) (*models.User, error)
	save             func(ctx context.Context, user *models.User) error
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return f.findByTelegramID(ctx, telegramID)
}

func (f *fakeRepo) FindByWhatsAppID(ctx context.Context, whatsappID string) (*models.User, error) {
	return f.findByWhatsAppID(ctx, whatsappID)
}

func (f *fakeRepo) FindAdmins(ctx context.Context) ([]models.User, error) {
	return f.findAdmins(ctx)
}

func (f *fakeRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return f.create(ctx, user)
}

func (f *fakeRepo) Save(ctx context.Context, user *models.User) error {
	return f.save(ctx, user)
}

func TestResolveCreatesUnknownTelegramUser(t *testing.T) {
	var created *models.User
	repo := &fakeRepo{
		findByTelegramID: func(ctx context.Context, telegramID int64) (*models.User, error) {
			return nil, gorm.ErrRecordNotFound
		},
		create: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = uuid.New()
			created = user
			return user, nil
		},
	}

	svc, err := NewService(repo, config.AppConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	user, err := svc.Resolve(context.Background(), types.Identity{
		Channel:    enums.ChannelTelegram,
		TelegramID: 42,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if created == nil {
		t.Fatal("expected create to be called")
	}
	if user.TelegramID == nil || *user.TelegramID != 42 {
		t.Fatalf("expected telegram id 42, got %v", user.TelegramID)
	}
	if user.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", user.Role)
	}
	if user.ConversationState != enums.ConversationStateIdle {
		t.Fatalf("expected idle state, got %s", user.ConversationState)
	}
}

func TestResolveSeedsWhatsAppPhoneFromIdentity(t *testing.T) {
	repo := &fakeRepo{
		findByWhatsAppID: func(ctx context.Context, whatsappID string) (*models.User, error) {
			return nil, gorm.ErrRecordNotFound
		},
		create: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = uuid.New()
			return user, nil
		},
	}

	svc, err := NewService(repo, config.AppConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	user, err := svc.Resolve(context.Background(), types.Identity{
		Channel:    enums.ChannelWhatsApp,
		WhatsAppID: "34600000000",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Phone == nil || *user.Phone != "+34600000000" {
		t.Fatalf("expected phone +34600000000, got %v", user.Phone)
	}
}

func TestResolvePromotesAllowlistedAdmin(t *testing.T) {
	tgID := int64(99)
	existing := &models.User{
		ID:         uuid.New(),
		TelegramID: &tgID,
		Role:       enums.UserRoleCustomer,
	}
	saved := false
	repo := &fakeRepo{
		findByTelegramID: func(ctx context.Context, telegramID int64) (*models.User, error) {
			return existing, nil
		},
		save: func(ctx context.Context, user *models.User) error {
			saved = true
			return nil
		},
	}

	svc, err := NewService(repo, config.AppConfig{AdminTelegramIDs: []int64{99}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	user, err := svc.Resolve(context.Background(), types.Identity{
		Channel:    enums.ChannelTelegram,
		TelegramID: 99,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", user.Role)
	}
	if !saved {
		t.Fatal("expected role reconciliation to persist")
	}
}

func TestResolveDemotesRemovedAdmin(t *testing.T) {
	tgID := int64(7)
	existing := &models.User{
		ID:         uuid.New(),
		TelegramID: &tgID,
		Role:       enums.UserRoleAdmin,
	}
	repo := &fakeRepo{
		findByTelegramID: func(ctx context.Context, telegramID int64) (*models.User, error) {
			return existing, nil
		},
		save: func(ctx context.Context, user *models.User) error { return nil },
	}

	svc, err := NewService(repo, config.AppConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	user, err := svc.Resolve(context.Background(), types.Identity{
		Channel:    enums.ChannelTelegram,
		TelegramID: 7,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Role != enums.UserRoleCustomer {
		t.Fatalf("expected demotion to customer, got %s", user.Role)
	}
}
