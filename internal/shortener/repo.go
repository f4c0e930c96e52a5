package shortener

import (
	"context"
	"time"
)

// Repository persists links.
//
// Implementations return errors tagged with errx kinds: NotFound when no link
// matches, Conflict when a short code is already taken, Internal otherwise.
type Repository interface {
	// Create inserts link and returns it with the store-assigned ID and CreatedAt.
	Create(ctx context.Context, link Link) (Link, error)

	// GetByShortCode returns the link with exactly this short code.
	GetByShortCode(ctx context.Context, shortCode string) (Link, error)

	// ResolveAndTrack atomically increments the click count and sets
	// LastAccessedAt to at, but only for a link that has not expired at at.
	// It returns NotFound both for unknown and for expired codes.
	ResolveAndTrack(ctx context.Context, shortCode string, at time.Time) (Link, error)

	// List returns up to limit links after skipping offset, newest first.
	List(ctx context.Context, offset, limit int) ([]Link, error)

	// Count returns the total number of links.
	Count(ctx context.Context) (int64, error)
}
