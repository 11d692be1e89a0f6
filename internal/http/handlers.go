package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/inventory-manager/internal/cache"
	"github.com/fairyhunter13/inventory-manager/internal/config"
	httpopenapi "github.com/fairyhunter13/inventory-manager/internal/http/openapi"
	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
	"github.com/fairyhunter13/inventory-manager/internal/queue"
	"github.com/fairyhunter13/inventory-manager/internal/store"
)

const maxBodyBytes = 1 << 20

// Envelope modes for RESPONSE_ENVELOPE.
const (
	EnvelopeBare     = "bare"
	EnvelopeResource = "resource"
	EnvelopeData     = "data"
)

// singular names used by the resource envelope.
var singular = map[string]string{
	model.ResourceProducts:   "product",
	model.ResourceCategories: "category",
}

// App holds the dependencies shared by the handlers.
type App struct {
	Cfg       config.Config
	Store     store.Store
	Cache     cache.Cache
	Manager   *queue.Manager
	Validator *Validator
	closing   atomic.Bool
	started   time.Time

	// gens holds one list generation per resource. A mutation bumps it after
	// writing the store, so a list read that started earlier never caches.
	gens map[string]*atomic.Uint64
}

func NewApp(cfg config.Config, st store.Store, c cache.Cache, m *queue.Manager) (*App, error) {
	v, err := NewValidator(model.ResourceProducts, model.ResourceCategories)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = cache.NewMemory()
	}
	gens := make(map[string]*atomic.Uint64, len(singular))
	for resource := range singular {
		gens[resource] = new(atomic.Uint64)
	}
	return &App{Cfg: cfg, Store: st, Cache: c, Manager: m, Validator: v, started: time.Now(), gens: gens}, nil
}

// StartShutdown rejects further mutations and closes event intake.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Manager.CloseIntake()
}

func listKey(resource string, gen uint64) string {
	return "list:" + resource + ":" + strconv.FormatUint(gen, 10)
}

func (a *App) envelope(resource string, v any, many bool) any {
	switch a.Cfg.ResponseEnvelope {
	case EnvelopeResource:
		name := resource
		if !many {
			name = singular[resource]
		}
		return map[string]any{name: v}
	case EnvelopeData:
		return map[string]any{"data": v}
	default:
		return v
	}
}

func (a *App) listHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		gen := a.gens[resource]
		seen := gen.Load()
		key := listKey(resource, seen)
		if b, ok, err := a.Cache.Get(ctx, key); err != nil {
			obs.Logger.Warn("cache_get_failed", "key", key, "error", err)
		} else if ok {
			w.Header().Set("X-Cache", "hit")
			writeRaw(w, http.StatusOK, b)
			return
		}
		docs, err := a.Store.List(ctx, resource)
		if err != nil {
			a.storeError(w, r, err)
			return
		}
		if docs == nil {
			docs = []*model.Document{}
		}
		b, err := json.Marshal(a.envelope(resource, docs, true))
		if err != nil {
			WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
		if gen.Load() == seen {
			if err := a.Cache.Set(ctx, key, b, a.Cfg.CacheTTL); err != nil {
				obs.Logger.Warn("cache_set_failed", "key", key, "error", err)
			}
		}
		w.Header().Set("X-Cache", "miss")
		writeRaw(w, http.StatusOK, b)
	}
}

func (a *App) getHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := a.Store.Get(r.Context(), resource, r.PathValue("id"))
		if err != nil {
			a.storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a.envelope(resource, doc, false))
	}
}

func (a *App) createHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.acceptMutation(w) {
			return
		}
		body, ok := readDocument(w, r)
		if !ok {
			return
		}
		if err := a.Validator.Validate(resource, body, false); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		id := uuid.NewString()
		doc := model.DocumentOf("_id", id)
		for _, k := range body.Keys() {
			if isServerField(k) {
				continue
			}
			v, _ := body.Get(k)
			doc.Set(k, v)
		}
		doc.Set("createdAt", now)
		doc.Set("updatedAt", now)
		if err := a.Store.Insert(r.Context(), resource, id, doc); err != nil {
			a.storeError(w, r, err)
			return
		}
		a.changed(r, resource, model.ActionCreated, id, doc)
		writeJSON(w, http.StatusCreated, a.envelope(resource, doc, false))
	}
}

// updateHandler serves PUT and PATCH. Both merge; only PUT requires the
// full set of mandatory fields.
func (a *App) updateHandler(resource string, partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.acceptMutation(w) {
			return
		}
		body, ok := readDocument(w, r)
		if !ok {
			return
		}
		if err := a.Validator.Validate(resource, body, partial); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		changes := model.NewDocument()
		for _, k := range body.Keys() {
			if isServerField(k) {
				continue
			}
			v, _ := body.Get(k)
			changes.Set(k, v)
		}
		changes.Set("updatedAt", time.Now().UTC().Format(time.RFC3339Nano))
		id := r.PathValue("id")
		doc, err := a.Store.Update(r.Context(), resource, id, changes)
		if err != nil {
			a.storeError(w, r, err)
			return
		}
		a.changed(r, resource, model.ActionUpdated, id, doc)
		writeJSON(w, http.StatusOK, a.envelope(resource, doc, false))
	}
}

func (a *App) deleteHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.acceptMutation(w) {
			return
		}
		id := r.PathValue("id")
		if err := a.Store.Delete(r.Context(), resource, id); err != nil {
			a.storeError(w, r, err)
			return
		}
		a.changed(r, resource, model.ActionDeleted, id, nil)
		writeJSON(w, http.StatusOK, model.DocumentOf("message", "deleted", "_id", id))
	}
}

// lowStockHandler lists products whose quantity is at or below the
// threshold. Products without a numeric quantity are left out.
func (a *App) lowStockHandler(w http.ResponseWriter, r *http.Request) {
	threshold := decimal.NewFromInt(int64(a.Cfg.LowStockThreshold))
	if q := r.URL.Query().Get("threshold"); q != "" {
		d, err := decimal.NewFromString(q)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "invalid_threshold", err.Error())
			return
		}
		threshold = d
	}
	docs, err := a.Store.List(r.Context(), model.ResourceProducts)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	out := []*model.Document{}
	for _, d := range docs {
		if qty, ok := quantity(d); ok && qty.LessThanOrEqual(threshold) {
			out = append(out, d)
		}
	}
	writeJSON(w, http.StatusOK, a.envelope(model.ResourceProducts, out, true))
}

func quantity(d *model.Document) (decimal.Decimal, bool) {
	v, ok := d.Get("quantity")
	if !ok {
		return decimal.Decimal{}, false
	}
	s, ok := v.(fmt.Stringer)
	if !ok {
		return decimal.Decimal{}, false
	}
	q, err := decimal.NewFromString(s.String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return q, true
}

func isServerField(k string) bool {
	return k == "_id" || k == "createdAt" || k == "updatedAt"
}

// acceptMutation answers 503 once shutdown has started.
func (a *App) acceptMutation(w http.ResponseWriter) bool {
	if a.closing.Load() || a.Manager.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return false
	}
	return true
}

// readDocument decodes a JSON object body, answering 415 or 400 itself.
func readDocument(w http.ResponseWriter, r *http.Request) (*model.Document, bool) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return nil, false
	}
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteJSONError(w, http.StatusRequestEntityTooLarge, "body_too_large", "")
			return nil, false
		}
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return nil, false
	}
	v, err := model.Decode(b)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return nil, false
	}
	doc, ok := v.(*model.Document)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", "expected a JSON object")
		return nil, false
	}
	return doc, true
}

// changed invalidates the cached list and queues a change event. It must run
// after the store write.
func (a *App) changed(r *http.Request, resource string, action model.Action, id string, doc *model.Document) {
	prev := a.gens[resource].Add(1) - 1
	if err := a.Cache.Delete(r.Context(), listKey(resource, prev)); err != nil {
		obs.Logger.Warn("cache_invalidate_failed", "resource", resource, "error", err)
	}
	if !a.Manager.Emit(resource, action, id, doc) {
		obs.Logger.Warn("change_event_dropped", "resource", resource, "id", id, "action", string(action))
	}
	obs.Logger.Info("document_"+string(action),
		"request_id", RequestIDFromContext(r.Context()),
		"resource", resource,
		"id", id,
	)
}

func (a *App) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, store.ErrConflict):
		WriteJSONError(w, http.StatusConflict, "conflict", "")
	default:
		obs.Logger.Error("store_failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.DocumentOf(
		"message", "inventory API is running",
		"timestamp", time.Now().UTC().Format(time.RFC3339),
		"store", a.Cfg.StoreDriver,
		"envelope", a.envelopeName(),
		"resources", []any{model.ResourceProducts, model.ResourceCategories},
	))
}

func (a *App) envelopeName() string {
	switch a.Cfg.ResponseEnvelope {
	case EnvelopeResource, EnvelopeData:
		return a.Cfg.ResponseEnvelope
	default:
		return EnvelopeBare
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if a.closing.Load() {
		status = "shutting_down"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Manager.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"events_enqueued":  st.Enqueued,
		"events_processed": st.Processed,
		"publish_failures": a.Manager.PublishFailures(),
		"last_sequence":    a.Manager.LastSequence(),
		"backlog_size":     st.Backlog,
		"queue_depth":      st.Depth,
		"worker_count":     a.Manager.WorkerCount(),
		"uptime_sec":       time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}

const docsHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Inventory API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
