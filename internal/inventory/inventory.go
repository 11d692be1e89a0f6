// Package inventory wires collections to the products and categories
// services and owns them in an explicit App value.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairyhunter13/inventory-manager/internal/client"
	"github.com/fairyhunter13/inventory-manager/internal/collection"
	"github.com/fairyhunter13/inventory-manager/internal/config"
	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/service"
)

// NewProducts returns the products collection.
func NewProducts(t service.Transport) *collection.Collection {
	return collection.New(model.ResourceProducts, service.Products(t))
}

// NewCategories returns the categories collection.
func NewCategories(t service.Transport) *collection.Collection {
	return collection.New(model.ResourceCategories, service.Categories(t))
}

// App is the client-side application state.
type App struct {
	Products   *collection.Collection
	Categories *collection.Collection
}

// New builds an App over one transport.
func New(t service.Transport) *App {
	return &App{Products: NewProducts(t), Categories: NewCategories(t)}
}

// NewFromConfig builds an App talking to cfg.APIBaseURL.
func NewFromConfig(cfg config.Config) *App {
	return New(client.New(cfg.APIBaseURL, client.WithTimeout(cfg.ClientTimeout)))
}

// ErrUnknownResource is returned by Resource for names other than products
// and categories.
var ErrUnknownResource = errors.New("inventory: unknown resource")

// Resource looks a collection up by resource name.
func (a *App) Resource(name string) (*collection.Collection, error) {
	switch name {
	case model.ResourceProducts:
		return a.Products, nil
	case model.ResourceCategories:
		return a.Categories, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

// LoadAll loads every collection, returning the joined failures.
func (a *App) LoadAll(ctx context.Context) error {
	return errors.Join(a.Products.Load(ctx), a.Categories.Load(ctx))
}
