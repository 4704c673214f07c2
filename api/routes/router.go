package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/procurehub/webshop-backend/api/controllers"
	"github.com/procurehub/webshop-backend/api/middleware"
	cartsvc "github.com/procurehub/webshop-backend/internal/cart"
	checkoutsvc "github.com/procurehub/webshop-backend/internal/checkout"
	ordersvc "github.com/procurehub/webshop-backend/internal/orders"
	punchoutsvc "github.com/procurehub/webshop-backend/internal/punchout"
	valuehelpsvc "github.com/procurehub/webshop-backend/internal/valuehelp"
	"github.com/procurehub/webshop-backend/pkg/config"
	"github.com/procurehub/webshop-backend/pkg/db"
	"github.com/procurehub/webshop-backend/pkg/logger"
	"github.com/procurehub/webshop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	registry *prometheus.Registry,
	cartManager *cartsvc.Manager,
	checkoutService checkoutsvc.Service,
	fileStore checkoutsvc.FileStore,
	punchoutService punchoutsvc.Service,
	ordersService ordersvc.Service,
	valueHelpService valuehelpsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Punchout.AllowedOrigin),
		middleware.UserContext(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartManager, logg))
			r.Post("/items", controllers.CartMergeItems(cartManager, logg))
			r.Post("/free-text", controllers.CartAddFreeText(cartManager, logg))
			r.Post("/reorder", controllers.CartReorder(cartManager, logg))
			r.Put("/items/{id}/quantity", controllers.CartSetQuantity(cartManager, logg))
			r.Put("/items/{id}/accounting", controllers.CartSetAccounting(cartManager, logg))
			r.Patch("/items/{id}", controllers.CartPatchEntry(cartManager, logg))
			r.Post("/items/{id}/save-for-later", controllers.CartSaveForLater(cartManager, logg))
			r.Post("/saved/{id}/copy-to-cart", controllers.CartCopyBack(cartManager, logg))
			r.Delete("/{list}/{id}", controllers.CartRemove(cartManager, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutEnter(checkoutService, logg))
			r.Get("/", controllers.CheckoutFlow(checkoutService, logg))
			r.Patch("/draft", controllers.CheckoutUpdateDraft(checkoutService, logg))
			r.Post("/advance", controllers.CheckoutAdvance(checkoutService, logg))
			r.Post("/attachments", controllers.CheckoutAddAttachment(checkoutService, fileStore, cfg.Upload.MaxUploadMB, logg))
			r.Delete("/attachments/{index}", controllers.CheckoutRemoveAttachment(checkoutService, fileStore, logg))
		})

		r.Route("/punchout", func(r chi.Router) {
			r.Get("/catalogs", controllers.PunchoutCatalogs(punchoutService, logg))
			r.Post("/launch", controllers.PunchoutLaunch(punchoutService, logg))
			r.Post("/ready", controllers.PunchoutReady(punchoutService, logg))
			r.Get("/messages", controllers.PunchoutMessages(punchoutService, logg))
			r.Post("/import", controllers.PunchoutImport(punchoutService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrdersSubmit(ordersService, logg))
			r.Get("/last", controllers.OrdersLast(cartManager, logg))
		})

		r.Get("/value-help/{collection}", controllers.ValueHelpList(valueHelpService, logg))
	})

	return r
}
