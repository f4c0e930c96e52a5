package shortener

import (
	"errors"
	"fmt"
)

// Domain errors. Each is wrapped in an *errx.Error whose Kind the HTTP layer
// maps to a status; use errors.Is to test for a specific condition.
var (
	ErrInvalidTargetURL = errors.New("invalid target url")
	ErrInvalidAlias     = errors.New("invalid alias")
	ErrLinkNotFound     = errors.New("short link not found")
	ErrLinkExpired      = errors.New("short link has expired")
)

// AliasConflictError reports that a short code is already taken.
type AliasConflictError struct {
	Alias string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("short code %q is already taken", e.Alias)
}
