package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/labstock-backend/api/controllers"
	"github.com/angelmondragon/labstock-backend/api/middleware"
	"github.com/angelmondragon/labstock-backend/internal/allocations"
	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/internal/imports"
	"github.com/angelmondragon/labstock-backend/internal/ledger"
	"github.com/angelmondragon/labstock-backend/internal/projects"
	"github.com/angelmondragon/labstock-backend/internal/stock"
	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/redis"
)

// RouterParams groups what the HTTP adapter needs. Redis and Gatherer are
// optional.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	Catalog     *catalog.Service
	Stock       *stock.Service
	Projects    *projects.Service
	Allocations *allocations.Service
	Imports     *imports.Service
	Ledger      ledger.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var redisPinger controllers.Pinger
	var idempotencyStore redis.IdempotencyStore
	if p.Redis != nil {
		redisPinger = p.Redis
		if cfg.FeatureFlags.Idempotency {
			idempotencyStore = p.Redis
		}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, redisPinger))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Operator(logg))
		if idempotencyStore != nil {
			r.Use(middleware.Idempotency(idempotencyStore, logg))
		}

		r.Route("/parts", func(r chi.Router) {
			r.Get("/", controllers.PartList(p.Catalog, logg))
			r.Put("/{mpn}", controllers.PartUpsert(p.Catalog, logg))
			r.Get("/{mpn}", controllers.PartGet(p.Catalog, logg))
			r.Get("/{mpn}/availability", controllers.PartAvailability(p.Allocations, logg))
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", controllers.LocationList(p.Catalog, logg))
			r.Post("/", controllers.LocationCreate(p.Catalog, logg))
			r.Post("/provision", controllers.LocationProvision(p.Catalog, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/in", controllers.StockIn(p.Stock, logg))
			r.Post("/out", controllers.StockOut(p.Stock, logg))
			r.Post("/move", controllers.StockMove(p.Stock, logg))
			r.Post("/adjust", controllers.StockAdjust(p.Stock, logg))
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", controllers.ProjectList(p.Projects, logg))
			r.Get("/overview", controllers.ProjectOverview(p.Projects, logg))
			r.Route("/{code}", func(r chi.Router) {
				r.Put("/", controllers.ProjectUpsert(p.Projects, logg))
				r.Get("/", controllers.ProjectGet(p.Projects, logg))
				r.Get("/bom", controllers.BomList(p.Projects, logg))
				r.Put("/bom", controllers.BomSet(p.Projects, logg))
				r.Get("/material-status", controllers.MaterialStatus(p.Projects, logg))
				r.Get("/allocations", controllers.ProjectAllocations(p.Projects, logg))
				r.Get("/resources", controllers.ResourceList(p.Projects, logg))
				r.Post("/resources", controllers.ResourceUpsert(p.Projects, logg))
				r.Get("/resources/check", controllers.ResourceCheck(p.Projects, logg))
			})
		})
		r.Delete("/resources/{id}", controllers.ResourceDelete(p.Projects, logg))

		r.Route("/allocations", func(r chi.Router) {
			r.Post("/", controllers.AllocationReserve(p.Allocations, logg))
			r.Get("/{id}", controllers.AllocationGet(p.Allocations, logg))
			r.Post("/{id}/release", controllers.AllocationRelease(p.Allocations, logg))
			r.Post("/{id}/consume", controllers.AllocationConsume(p.Allocations, logg))
		})

		r.Post("/imports", controllers.ImportBatch(p.Imports, logg))

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", controllers.LedgerList(p.Ledger, logg))
			r.Get("/txns", controllers.LedgerTxns(p.Ledger, logg))
		})
	})

	return r
}
