package httpapi

import (
	"expvar"
	"net/http"

	"github.com/fairyhunter13/inventory-manager/internal/model"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", app.statusHandler)
	mux.HandleFunc("GET /api/products/low-stock", app.lowStockHandler)
	for _, res := range []string{model.ResourceProducts, model.ResourceCategories} {
		base := "/api/" + res
		mux.HandleFunc("GET "+base, app.listHandler(res))
		mux.HandleFunc("POST "+base, app.createHandler(res))
		mux.HandleFunc("GET "+base+"/{id}", app.getHandler(res))
		mux.HandleFunc("PUT "+base+"/{id}", app.updateHandler(res, false))
		mux.HandleFunc("PATCH "+base+"/{id}", app.updateHandler(res, true))
		mux.HandleFunc("DELETE "+base+"/{id}", app.deleteHandler(res))
	}
	mux.HandleFunc("GET /healthz", app.healthHandler)
	mux.HandleFunc("GET /debug/metrics", app.metricsHandler)
	mux.Handle("GET /debug/vars", expvar.Handler())
	mux.HandleFunc("GET /openapi.yaml", app.openapiHandler)
	mux.HandleFunc("GET /docs", app.docsHandler)

	var h http.Handler = mux
	if app.Cfg.RateLimitRPS > 0 {
		h = NewRateLimiter(app.Cfg.RateLimitRPS, app.Cfg.RateLimitBurst).Middleware(h)
	}
	h = WithCORS(app.Cfg.CORSOrigin, h)
	return WithRequestID(WithLogging(h))
}
