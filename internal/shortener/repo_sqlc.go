package shortener

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortlinks/internal/db/sqlc"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

// querier is an internal interface that abstracts *db.Queries
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByShortCode(ctx context.Context, shortCode string) (db.Link, error)
	ResolveAndTrackLink(ctx context.Context, arg db.ResolveAndTrackLinkParams) (db.Link, error)
	ListLinks(ctx context.Context, arg db.ListLinksParams) ([]db.Link, error)
	CountLinks(ctx context.Context) (int64, error)
}

type repo struct {
	q querier
}

// NewRepository returns a PostgreSQL-backed Repository over sqlc queries.
func NewRepository(q querier) Repository {
	return &repo{q: q}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	expiresAt, err := mustTime(x.ExpiresAt, "expires_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:             x.ID,
		TargetURL:      x.TargetUrl,
		ShortCode:      x.ShortCode,
		ClickCount:     x.ClickCount,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		LastAccessedAt: timePtr(x.LastAccessedAt),
	}, nil
}

func (r *repo) toDomain(op string, row db.Link) (Link, error) {
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Create"

	if link.ExpiresAt.IsZero() {
		return Link{}, errx.E(op, errx.Internal, fmt.Errorf("expires_at is required"))
	}

	row, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		TargetUrl: link.TargetURL,
		ShortCode: link.ShortCode,
		ExpiresAt: timestamptz(link.ExpiresAt),
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return r.toDomain(op, row)
}

func (r *repo) GetByShortCode(ctx context.Context, shortCode string) (Link, error) {
	const op = "shortener.repo.GetByShortCode"

	row, err := r.q.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return r.toDomain(op, row)
}

func (r *repo) ResolveAndTrack(ctx context.Context, shortCode string, at time.Time) (Link, error) {
	const op = "shortener.repo.ResolveAndTrack"

	row, err := r.q.ResolveAndTrackLink(ctx, db.ResolveAndTrackLinkParams{
		AccessedAt: timestamptz(at),
		ShortCode:  shortCode,
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return r.toDomain(op, row)
}

func (r *repo) List(ctx context.Context, offset, limit int) ([]Link, error) {
	const op = "shortener.repo.List"

	if offset < 0 || limit <= 0 || offset > math.MaxInt32 || limit > math.MaxInt32 {
		return []Link{}, nil
	}

	rows, err := r.q.ListLinks(ctx, db.ListLinksParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	links := make([]Link, 0, len(rows))
	for _, row := range rows {
		link, err := r.toDomain(op, row)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	const op = "shortener.repo.Count"

	n, err := r.q.CountLinks(ctx)
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}
