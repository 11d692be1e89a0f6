// Package model defines domain types used by the service and its clients.
package model

import "time"

// Resource names served by the API.
const (
	ResourceProducts   = "products"
	ResourceCategories = "categories"
)

// Action describes what happened to a document.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ChangeEvent records one mutation applied by the API.
type ChangeEvent struct {
	Sequence uint64    `json:"sequence"`
	Resource string    `json:"resource"`
	Action   Action    `json:"action"`
	ID       string    `json:"id"`
	Document *Document `json:"document,omitempty"`
	At       time.Time `json:"at"`
}

// Key identifies the document an event belongs to.
func (e ChangeEvent) Key() string { return e.Resource + "/" + e.ID }
