// Package service binds the remote list, create, update and delete
// operations of one resource type into a uniform interface.
package service

import (
	"context"
	"net/url"

	"github.com/fairyhunter13/inventory-manager/internal/client"
	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/normalize"
)

// Service is the remote side of a collection.
type Service interface {
	// FetchList reads the whole resource collection.
	FetchList(ctx context.Context) ([]*model.Document, error)
	// CreateOne returns nil without error when the response carried no
	// recognisable entity.
	CreateOne(ctx context.Context, payload any) (*model.Document, error)
	// UpdateOne applies a partial update. A nil document means the response
	// shape was not recognised.
	UpdateOne(ctx context.Context, id string, changes any) (*model.Document, error)
	// DeleteOne reports true once the remote accepted the deletion.
	DeleteOne(ctx context.Context, id string) (bool, error)
	// EntityID resolves the identity of a document.
	EntityID(doc *model.Document) (string, bool)
}

// Transport is the subset of client.Client used by HTTPService.
type Transport interface {
	Get(ctx context.Context, path string) (any, error)
	Post(ctx context.Context, path string, body any) (any, error)
	Patch(ctx context.Context, path string, body any) (any, error)
	Delete(ctx context.Context, path string) (any, error)
}

var _ Transport = (*client.Client)(nil)

// HTTPService implements Service against a REST collection path.
type HTTPService struct {
	t    Transport
	path string
}

// NewHTTP binds a collection path such as /api/products.
func NewHTTP(t Transport, path string) *HTTPService {
	return &HTTPService{t: t, path: path}
}

// Products binds the products collection.
func Products(t Transport) *HTTPService { return NewHTTP(t, "/api/"+model.ResourceProducts) }

// Categories binds the categories collection.
func Categories(t Transport) *HTTPService { return NewHTTP(t, "/api/"+model.ResourceCategories) }

// Path returns the collection path.
func (s *HTTPService) Path() string { return s.path }

func (s *HTTPService) itemPath(id string) string {
	return s.path + "/" + url.PathEscape(id)
}

func (s *HTTPService) FetchList(ctx context.Context) ([]*model.Document, error) {
	data, err := s.t.Get(ctx, s.path)
	if err != nil {
		return nil, err
	}
	return normalize.Entities(normalize.PickList(data)), nil
}

func (s *HTTPService) CreateOne(ctx context.Context, payload any) (*model.Document, error) {
	data, err := s.t.Post(ctx, s.path, payload)
	if err != nil {
		return nil, err
	}
	return normalize.PickEntity(data), nil
}

func (s *HTTPService) UpdateOne(ctx context.Context, id string, changes any) (*model.Document, error) {
	data, err := s.t.Patch(ctx, s.itemPath(id), changes)
	if err != nil {
		return nil, err
	}
	return normalize.PickEntity(data), nil
}

func (s *HTTPService) DeleteOne(ctx context.Context, id string) (bool, error) {
	if _, err := s.t.Delete(ctx, s.itemPath(id)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *HTTPService) EntityID(doc *model.Document) (string, bool) {
	return normalize.GetID(doc)
}
