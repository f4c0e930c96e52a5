package shortener

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

var (
	errMemoryNoLink    = errors.New("no link with this short code")
	errMemoryDuplicate = errors.New("short code already exists")
)

type memoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	links  map[string]*Link
	now    func() time.Time
}

// NewMemoryRepository returns a Repository held in process memory.
// All operations are serialized by a single lock, so ResolveAndTrack is atomic.
func NewMemoryRepository() Repository {
	return &memoryRepo{
		links: make(map[string]*Link),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepo) Create(_ context.Context, link Link) (Link, error) {
	const op = "shortener.memoryRepo.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ShortCode]; exists {
		return Link{}, errx.E(op, errx.Conflict, errMemoryDuplicate)
	}

	r.nextID++
	stored := Link{
		ID:        r.nextID,
		TargetURL: link.TargetURL,
		ShortCode: link.ShortCode,
		CreatedAt: r.now(),
		ExpiresAt: link.ExpiresAt,
	}
	r.links[stored.ShortCode] = &stored

	return stored.clone(), nil
}

func (r *memoryRepo) GetByShortCode(_ context.Context, shortCode string) (Link, error) {
	const op = "shortener.memoryRepo.GetByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[shortCode]
	if !ok {
		return Link{}, errx.E(op, errx.NotFound, errMemoryNoLink)
	}
	return link.clone(), nil
}

func (r *memoryRepo) ResolveAndTrack(_ context.Context, shortCode string, at time.Time) (Link, error) {
	const op = "shortener.memoryRepo.ResolveAndTrack"

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[shortCode]
	if !ok || link.ExpiredAt(at) {
		return Link{}, errx.E(op, errx.NotFound, errMemoryNoLink)
	}

	link.ClickCount++
	accessed := at
	link.LastAccessedAt = &accessed

	return link.clone(), nil
}

func (r *memoryRepo) List(_ context.Context, offset, limit int) ([]Link, error) {
	r.mu.RLock()
	all := make([]Link, 0, len(r.links))
	for _, link := range r.links {
		all = append(all, link.clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b Link) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if offset < 0 || limit <= 0 || offset >= len(all) {
		return []Link{}, nil
	}
	rest := all[offset:]
	if limit < len(rest) {
		rest = rest[:limit]
	}
	return rest, nil
}

func (r *memoryRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.links)), nil
}
