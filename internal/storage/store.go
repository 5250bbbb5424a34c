// Package storage persists the JSON documents that back each collection.
//
// Every collection (expenses, commissions, agents) is stored as one
// document that is read and rewritten as a whole. Two backends implement
// DocumentStore: plain JSON files and a SQLite table.
package storage

import (
	"context"
	"errors"
)

// ErrDocumentNotFound is returned by Load when no document has been saved
// under the requested name yet.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore loads and saves named documents.
type DocumentStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, body []byte) error
	Ping(ctx context.Context) error
	Close() error
}
