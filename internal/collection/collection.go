// Package collection keeps a local, ordered list of documents in step with a
// remote service.
//
// Mutations are applied optimistically when the remote returns a recognisable
// document and fall back to a full reload when it does not, or when the
// mutation fails. Operations are not serialized against each other: the mutex
// only guards state, never a network call.
package collection

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
	"github.com/fairyhunter13/inventory-manager/internal/service"
)

// State is the coarse status of a collection.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Snapshot is a consistent view of a collection.
type Snapshot struct {
	List    []*model.Document
	Loading bool
	Err     error
	State   State
}

// Collection holds the local list for one service.
type Collection struct {
	name string
	svc  service.Service

	mu       sync.Mutex
	list     []*model.Document
	inflight int
	err      error
}

// New returns an empty collection over svc. name labels logs and spans.
func New(name string, svc service.Service) *Collection {
	return &Collection{name: name, svc: svc, list: []*model.Document{}}
}

// Name returns the label given to New.
func (c *Collection) Name() string { return c.name }

// List returns a copy of the current list.
func (c *Collection) List() []*model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyList()
}

// IsLoading reports whether any operation is in flight.
func (c *Collection) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Err returns the last recorded failure.
func (c *Collection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// State returns loading, error or idle, in that precedence.
func (c *Collection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

// Snapshot returns list, loading flag, error and state read together.
func (c *Collection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{List: c.copyList(), Loading: c.inflight > 0, Err: c.err, State: c.state()}
}

func (c *Collection) state() State {
	switch {
	case c.inflight > 0:
		return StateLoading
	case c.err != nil:
		return StateError
	default:
		return StateIdle
	}
}

func (c *Collection) copyList() []*model.Document {
	out := make([]*model.Document, len(c.list))
	copy(out, c.list)
	return out
}

// begin marks an operation in flight and clears the previous error.
func (c *Collection) begin() {
	c.mu.Lock()
	c.inflight++
	c.err = nil
	c.mu.Unlock()
}

func (c *Collection) end() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

func (c *Collection) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Collection) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("collection.name", c.name))
	return obs.Tracer.Start(ctx, "collection."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Load replaces the list with the remote collection. On failure the list is
// emptied and the error recorded.
func (c *Collection) Load(ctx context.Context) (err error) {
	ctx, span := c.span(ctx, "load")
	defer func() { endSpan(span, err) }()

	c.begin()
	defer c.end()
	return c.fetch(ctx)
}

func (c *Collection) fetch(ctx context.Context) error {
	items, err := c.svc.FetchList(ctx)
	if err != nil {
		c.mu.Lock()
		c.err = err
		c.list = []*model.Document{}
		c.mu.Unlock()
		obs.Logger.Warn("collection_load_failed", "collection", c.name, "error", err)
		return err
	}
	if items == nil {
		items = []*model.Document{}
	}
	c.mu.Lock()
	c.list = items
	c.mu.Unlock()
	return nil
}

// recover reloads after a failed mutation. The mutation error stays recorded;
// a failing reload is joined to it. The reload ignores cancellation of ctx,
// since the mutation may have failed because ctx was cancelled.
func (c *Collection) recover(ctx context.Context, op string, cause error) error {
	c.fail(cause)
	obs.Logger.Warn("collection_mutation_failed", "collection", c.name, "op", op, "error", cause)
	items, err := c.svc.FetchList(context.WithoutCancel(ctx))
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.list = []*model.Document{}
		c.err = errors.Join(cause, err)
		return c.err
	}
	if items == nil {
		items = []*model.Document{}
	}
	c.list = items
	c.err = cause
	return cause
}

// Create adds a document remotely. A recognised result is prepended unless a
// document with the same id is already listed; an unrecognised result
// triggers a reload and yields nil.
func (c *Collection) Create(ctx context.Context, payload any) (doc *model.Document, err error) {
	ctx, span := c.span(ctx, "create")
	defer func() { endSpan(span, err) }()

	c.begin()
	defer c.end()

	created, err := c.svc.CreateOne(ctx, payload)
	if err != nil {
		return nil, c.recover(ctx, "create", err)
	}
	if created == nil {
		return nil, c.fetch(ctx)
	}

	id, hasID := c.svc.EntityID(created)
	c.mu.Lock()
	defer c.mu.Unlock()
	if hasID && c.indexOf(id) >= 0 {
		return created, nil
	}
	next := make([]*model.Document, 0, len(c.list)+1)
	next = append(next, created)
	c.list = append(next, c.list...)
	return created, nil
}

// Update patches a document remotely and merges the result into every listed
// document with the same id. The id of the result wins over the requested id.
func (c *Collection) Update(ctx context.Context, id string, changes any) (doc *model.Document, err error) {
	ctx, span := c.span(ctx, "update", attribute.String("entity.id", id))
	defer func() { endSpan(span, err) }()

	c.begin()
	defer c.end()

	updated, err := c.svc.UpdateOne(ctx, id, changes)
	if err != nil {
		return nil, c.recover(ctx, "update", err)
	}
	if updated == nil {
		return nil, c.fetch(ctx)
	}

	target, ok := c.svc.EntityID(updated)
	if !ok {
		target = id
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]*model.Document, len(c.list))
	for i, item := range c.list {
		if itemID, ok := c.svc.EntityID(item); ok && itemID == target {
			next[i] = item.Merge(updated)
			continue
		}
		next[i] = item
	}
	c.list = next
	return updated, nil
}

// Remove deletes a document remotely and drops every listed document with
// that id.
func (c *Collection) Remove(ctx context.Context, id string) (ok bool, err error) {
	ctx, span := c.span(ctx, "remove", attribute.String("entity.id", id))
	defer func() { endSpan(span, err) }()

	c.begin()
	defer c.end()

	if _, err := c.svc.DeleteOne(ctx, id); err != nil {
		return false, c.recover(ctx, "remove", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]*model.Document, 0, len(c.list))
	for _, item := range c.list {
		if itemID, ok := c.svc.EntityID(item); ok && itemID == id {
			continue
		}
		next = append(next, item)
	}
	c.list = next
	return true, nil
}

// Find returns the listed document with the given id.
func (c *Collection) Find(id string) (*model.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.list[i], true
	}
	return nil, false
}

// indexOf must be called with mu held.
func (c *Collection) indexOf(id string) int {
	for i, item := range c.list {
		if itemID, ok := c.svc.EntityID(item); ok && itemID == id {
			return i
		}
	}
	return -1
}
