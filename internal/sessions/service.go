package sessions

import (
	"context"
	"fmt"

	"github.com/paquetebot/paquetebot-backend/pkg/config"
	"github.com/paquetebot/paquetebot-backend/pkg/db"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// Service resolves channel identities into persisted user sessions.
type Service interface {
	Resolve(ctx context.Context, identity types.Identity) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	Admins(ctx context.Context) ([]models.User, error)
}

type service struct {
	repo          Repository
	adminTelegram map[int64]struct{}
	adminWhatsApp map[string]struct{}
}

// NewService builds a sessions service. The admin allowlists come from
// deploy config; role is reconciled on every resolve so allowlist edits
// take effect on the user's next message.
func NewService(repo Repository, app config.AppConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sessions repository required")
	}

	adminTelegram := make(map[int64]struct{}, len(app.AdminTelegramIDs))
	for _, id := range app.AdminTelegramIDs {
		adminTelegram[id] = struct{}{}
	}
	adminWhatsApp := make(map[string]struct{}, len(app.AdminWhatsAppIDs))
	for _, id := range app.AdminWhatsAppIDs {
		adminWhatsApp[id] = struct{}{}
	}

	return &service{
		repo:          repo,
		adminTelegram: adminTelegram,
		adminWhatsApp: adminWhatsApp,
	}, nil
}

func (s *service) Resolve(ctx context.Context, identity types.Identity) (*models.User, error) {
	user, err := s.find(ctx, identity)
	if err != nil {
		if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user session")
		}
		return s.create(ctx, identity)
	}

	role := s.roleFor(identity)
	if user.Role != role {
		user.Role = role
		if err := s.repo.Save(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile user role")
		}
	}
	return user, nil
}

func (s *service) Save(ctx context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save user session")
	}
	return nil
}

func (s *service) Admins(ctx context.Context) ([]models.User, error) {
	admins, err := s.repo.FindAdmins(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admins")
	}
	return admins, nil
}

func (s *service) find(ctx context.Context, identity types.Identity) (*models.User, error) {
	switch identity.Channel {
	case enums.ChannelTelegram:
		return s.repo.FindByTelegramID(ctx, identity.TelegramID)
	case enums.ChannelWhatsApp:
		return s.repo.FindByWhatsAppID(ctx, identity.WhatsAppID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown channel")
}

func (s *service) create(ctx context.Context, identity types.Identity) (*models.User, error) {
	user := &models.User{
		Role:              s.roleFor(identity),
		ConversationState: enums.ConversationStateIdle,
		AdminState:        enums.AdminStateIdle,
	}
	switch identity.Channel {
	case enums.ChannelTelegram:
		id := identity.TelegramID
		user.TelegramID = &id
	case enums.ChannelWhatsApp:
		id := identity.WhatsAppID
		user.WhatsAppID = &id
		// WhatsApp identities are phone numbers already
		phone := "+" + identity.WhatsAppID
		user.Phone = &phone
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown channel")
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user session")
	}
	return created, nil
}

func (s *service) roleFor(identity types.Identity) enums.UserRole {
	switch identity.Channel {
	case enums.ChannelTelegram:
		if _, ok := s.adminTelegram[identity.TelegramID]; ok {
			return enums.UserRoleAdmin
		}
	case enums.ChannelWhatsApp:
		if _, ok := s.adminWhatsApp[identity.WhatsAppID]; ok {
			return enums.UserRoleAdmin
		}
	}
	return enums.UserRoleCustomer
}
