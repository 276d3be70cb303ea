package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paquetebot/paquetebot-backend/api/controllers"
	webhookcontrollers "github.com/paquetebot/paquetebot-backend/api/controllers/webhooks"
	"github.com/paquetebot/paquetebot-backend/api/middleware"
	"github.com/paquetebot/paquetebot-backend/internal/channels/telegram"
	"github.com/paquetebot/paquetebot-backend/internal/channels/whatsapp"
	"github.com/paquetebot/paquetebot-backend/pkg/config"
	"github.com/paquetebot/paquetebot-backend/pkg/db"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	registry *prometheus.Registry,
	engine webhookcontrollers.ConversationEngine,
	guard webhookcontrollers.DeliveryGuard,
	telegramClient *telegram.Client,
	whatsappClient *whatsapp.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/telegram", webhookcontrollers.TelegramWebhook(engine, telegramClient, guard, logg))
		r.Get("/whatsapp", webhookcontrollers.WhatsAppVerify(whatsappClient, logg))
		r.Post("/whatsapp", webhookcontrollers.WhatsAppWebhook(engine, whatsappClient, guard, logg))
	})

	return r
}
