package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/sluggen"
)

const (
	DefaultCodeLength     = 10
	MinAliasLength        = 3
	MaxAliasLength        = 50
	MaxURLLength          = 2048
	DefaultCodeMaxRetries = 3
	DefaultTTL            = 365 * 24 * time.Hour
	DefaultPageSize       = 20
	MaxPageSize           = 100
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	TargetURL   string
	CustomAlias string     // optional; a code is generated when blank
	ExpiresAt   *time.Time // optional; now + default TTL when nil
}

// Service is the link lifecycle engine.
type Service interface {
	CreateLink(ctx context.Context, req CreateLinkRequest) (CreatedLink, error)
	ResolveTarget(ctx context.Context, shortCode string) (string, error)
	GetLinkDetails(ctx context.Context, shortCode string) (LinkDetails, error)
	ListLinks(ctx context.Context, pageIndex, pageSize int) (Page, error)
}

type service struct {
	repo           Repository
	codeGenerator  sluggen.Generator
	codeLength     int
	codeMaxRetries int
	redirectDomain string
	defaultTTL     time.Duration
	now            func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator sluggen.Generator
	CodeLength    int
	// CodeMaxRetries bounds attempts for generated codes that collide.
	// Custom aliases are always tried once.
	CodeMaxRetries int
	// RedirectDomain is prefixed verbatim to a short code to form its short URL.
	RedirectDomain string
	DefaultTTL     time.Duration
	Now            func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codeGen := config.CodeGenerator
	if codeGen == nil {
		codeGen = sluggen.NewHex()
	}

	codeLength := config.CodeLength
	if codeLength < MinAliasLength || codeLength > MaxAliasLength {
		codeLength = DefaultCodeLength
	}

	retries := config.CodeMaxRetries
	if retries <= 0 {
		retries = DefaultCodeMaxRetries
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := config.Now
	if now == nil {
		// Microsecond precision matches what PostgreSQL stores.
		now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}

	return &service{
		repo:           repo,
		codeGenerator:  codeGen,
		codeLength:     codeLength,
		codeMaxRetries: retries,
		redirectDomain: config.RedirectDomain,
		defaultTTL:     ttl,
		now:            now,
	}
}

// CreateLink validates the target, resolves the short code and expiry, and
// inserts the link.
func (s *service) CreateLink(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
	const op = "shortener.service.CreateLink"

	if err := validateTargetURL(req.TargetURL); err != nil {
		return CreatedLink{}, errx.E(op, errx.Invalid, err)
	}

	code, generated, err := s.resolveShortCode(req.CustomAlias)
	if err != nil {
		return CreatedLink{}, errx.E(op, errx.KindOf(err), err)
	}

	expiresAt := s.resolveExpiry(req.ExpiresAt)

	for attempt := 1; ; attempt++ {
		created, err := s.repo.Create(ctx, Link{
			TargetURL: req.TargetURL,
			ShortCode: code,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			return CreatedLink{Link: created, ShortURL: s.shortURL(created.ShortCode)}, nil
		}

		if errx.KindOf(err) != errx.Conflict {
			return CreatedLink{}, errx.E(op, storeKind(err), err)
		}
		if !generated || attempt >= s.codeMaxRetries {
			return CreatedLink{}, errx.E(op, errx.Conflict, &AliasConflictError{Alias: code})
		}

		if code, err = s.generateCode(); err != nil {
			return CreatedLink{}, errx.E(op, errx.Internal, err)
		}
	}
}

// ResolveTarget returns the target URL of a live link and counts the visit.
func (s *service) ResolveTarget(ctx context.Context, shortCode string) (string, error) {
	const op = "shortener.service.ResolveTarget"

	if strings.TrimSpace(shortCode) == "" {
		return "", errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}

	now := s.now()

	link, err := s.repo.ResolveAndTrack(ctx, shortCode, now)
	if err == nil {
		return link.TargetURL, nil
	}
	if errx.KindOf(err) != errx.NotFound {
		return "", errx.E(op, storeKind(err), err)
	}

	// Nothing was updated: the code is unknown or expired as of now.
	existing, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return "", s.lookupError(op, err)
	}
	if existing.ExpiredAt(now) {
		return "", errx.E(op, errx.Expired, ErrLinkExpired)
	}

	// Live but not updated means it was inserted between the two calls.
	link, err = s.repo.ResolveAndTrack(ctx, shortCode, now)
	if err != nil {
		return "", s.lookupError(op, err)
	}
	return link.TargetURL, nil
}

// GetLinkDetails returns a snapshot of the link. Expired links are reported,
// not rejected.
func (s *service) GetLinkDetails(ctx context.Context, shortCode string) (LinkDetails, error) {
	const op = "shortener.service.GetLinkDetails"

	if strings.TrimSpace(shortCode) == "" {
		return LinkDetails{}, errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}

	link, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return LinkDetails{}, s.lookupError(op, err)
	}
	return s.details(link, s.now()), nil
}

// ListLinks returns one page of links, newest first. A page past the end is empty.
func (s *service) ListLinks(ctx context.Context, pageIndex, pageSize int) (Page, error) {
	const op = "shortener.service.ListLinks"

	if pageIndex < 0 {
		return Page{}, errx.E(op, errx.Invalid, errors.New("page must not be negative"))
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return Page{}, errx.E(op, errx.Invalid, fmt.Errorf("size must be between 1 and %d", MaxPageSize))
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, errx.E(op, storeKind(err), err)
	}

	size := int64(pageSize)
	totalPages := (total + size - 1) / size

	page := Page{
		Items:      []LinkDetails{},
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: int(totalPages),
	}
	if int64(pageIndex) >= totalPages {
		return page, nil
	}

	links, err := s.repo.List(ctx, pageIndex*pageSize, pageSize)
	if err != nil {
		return Page{}, errx.E(op, storeKind(err), err)
	}

	now := s.now()
	for _, link := range links {
		page.Items = append(page.Items, s.details(link, now))
	}
	return page, nil
}

// resolveShortCode picks the trimmed custom alias when one is given and
// generates a code otherwise. generated reports which path was taken.
func (s *service) resolveShortCode(customAlias string) (code string, generated bool, err error) {
	const op = "shortener.service.resolveShortCode"

	alias := strings.TrimSpace(customAlias)
	if alias != "" {
		if err := ValidateAlias(alias); err != nil {
			return "", false, errx.E(op, errx.Invalid, err)
		}
		return alias, false, nil
	}

	code, err = s.generateCode()
	if err != nil {
		return "", true, errx.E(op, errx.Internal, err)
	}
	return code, true, nil
}

func (s *service) generateCode() (string, error) {
	code, err := s.codeGenerator.Generate(s.codeLength)
	if err != nil {
		return "", fmt.Errorf("generate short code: %w", err)
	}
	return code, nil
}

// resolveExpiry uses the requested expiry verbatim, else now + default TTL.
func (s *service) resolveExpiry(requested *time.Time) time.Time {
	if requested != nil {
		return *requested
	}
	return s.now().Add(s.defaultTTL)
}

func (s *service) shortURL(shortCode string) string {
	return s.redirectDomain + shortCode
}

func (s *service) details(link Link, now time.Time) LinkDetails {
	return LinkDetails{
		ShortCode:      link.ShortCode,
		ShortURL:       s.shortURL(link.ShortCode),
		TargetURL:      link.TargetURL,
		CreatedAt:      link.CreatedAt,
		ExpiresAt:      link.ExpiresAt,
		ClickCount:     link.ClickCount,
		LastAccessedAt: link.LastAccessedAt,
		Status:         link.StatusAt(now),
	}
}

// lookupError turns a store NotFound into ErrLinkNotFound and passes anything
// else through as a store failure.
func (s *service) lookupError(op string, err error) error {
	if errx.KindOf(err) == errx.NotFound {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	return errx.E(op, storeKind(err), err)
}

// storeKind keeps a classified store error's kind and marks anything else Internal.
func storeKind(err error) errx.Kind {
	if kind := errx.KindOf(err); kind != errx.Unknown {
		return kind
	}
	return errx.Internal
}

func validateTargetURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidTargetURL)
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("%w: url too long (max %d characters)", ErrInvalidTargetURL, MaxURLLength)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: malformed url", ErrInvalidTargetURL)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("%w: url must include scheme (http or https)", ErrInvalidTargetURL)
	}
	if !strings.EqualFold(parsedURL.Scheme, "http") && !strings.EqualFold(parsedURL.Scheme, "https") {
		return fmt.Errorf("%w: url scheme must be http or https", ErrInvalidTargetURL)
	}
	if parsedURL.Hostname() == "" {
		return fmt.Errorf("%w: url must include host", ErrInvalidTargetURL)
	}
	return nil
}

// ValidateAlias reports whether alias can be used as a custom short code.
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return fmt.Errorf("%w: must be %d to %d characters", ErrInvalidAlias, MinAliasLength, MaxAliasLength)
	}
	for _, c := range alias {
		if !isAliasChar(c) {
			return fmt.Errorf("%w: only letters, digits, dash and underscore are allowed", ErrInvalidAlias)
		}
	}
	return nil
}

func isAliasChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
