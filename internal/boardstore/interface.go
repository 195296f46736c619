// Package boardstore persists submission boards.
package boardstore

import (
	"context"
	"errors"
	"time"

	"github.com/kilupskalvis/vbs/internal/submission"
)

// Sentinel errors for expected conditions.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Board is a named submission workspace shared by a team.
type Board struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	State     submission.State `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store defines the contract for board persistence.
type Store interface {
	Create(ctx context.Context, b *Board) error
	Get(ctx context.Context, id string) (*Board, error)
	// Update applies fn to the stored board inside one transaction. An
	// error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, fn func(*Board) error) (*Board, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Board, error)
	// PruneBefore deletes boards not updated since t and returns their IDs.
	PruneBefore(ctx context.Context, t time.Time) ([]string, error)

	// Close releases resources.
	Close() error
}
