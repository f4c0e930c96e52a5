package shortener

import "time"

// Status is derived from the current time and a link's expiry. It is never stored.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
)

// Link is a persisted short link.
type Link struct {
	ID             int64
	TargetURL      string
	ShortCode      string
	ClickCount     int64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt *time.Time
}

// ExpiredAt reports whether the link is expired at now. A link expires at the
// instant now reaches ExpiresAt.
func (l Link) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// StatusAt derives the link status at now.
func (l Link) StatusAt(now time.Time) Status {
	if l.ExpiredAt(now) {
		return StatusExpired
	}
	return StatusActive
}

func (l Link) clone() Link {
	if l.LastAccessedAt != nil {
		t := *l.LastAccessedAt
		l.LastAccessedAt = &t
	}
	return l
}

// CreatedLink is a freshly persisted link together with its public short URL.
type CreatedLink struct {
	Link
	ShortURL string
}

// LinkDetails is a read-only snapshot of a link and its statistics.
type LinkDetails struct {
	ShortCode      string
	ShortURL       string
	TargetURL      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	ClickCount     int64
	LastAccessedAt *time.Time
	Status         Status
}

// Page is one zero-indexed page of links, newest first.
type Page struct {
	Items      []LinkDetails
	PageIndex  int
	PageSize   int
	TotalItems int64
	TotalPages int
}
