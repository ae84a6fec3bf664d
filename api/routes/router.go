package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumicrm/payments-backend/api/controllers"
	webhookcontrollers "github.com/lumicrm/payments-backend/api/controllers/webhooks"
	"github.com/lumicrm/payments-backend/api/middleware"
	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	calendarService controllers.CalendarService,
	scheduleService controllers.ScheduleService,
	scheduleReader controllers.ScheduleReader,
	alertService controllers.AlertService,
	inboxService webhookcontrollers.EventProcessor,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.CORS(),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/psp/{provider}", webhookcontrollers.PSPWebhook(inboxService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/calendar", func(r chi.Router) {
			r.Post("/planned-date", controllers.CalendarPreview(calendarService, logg))
			r.Post("/resolve-configuration", controllers.CalendarConfiguration(calendarService, logg))
			r.Get("/eligibility", controllers.CalendarEligibility(calendarService, logg))
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", controllers.ScheduleCreate(scheduleService, logg))
			r.Get("/{scheduleId}", controllers.ScheduleFetch(scheduleReader, logg))
			r.Post("/{scheduleId}/cancel", controllers.ScheduleCancel(scheduleService, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.AlertList(alertService, logg))
			r.Post("/{alertId}/ack", controllers.AlertAcknowledge(alertService, logg))
		})
	})

	return r
}
