// Package entity defines the entities and errors shared by the link gateway.
// It includes the WrappedLink record persisted by the link store, the
// classification and bot verdict values produced by the leaf components, and
// the error taxonomy every layer maps its failures onto.
package entity

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the write-once sensitivity class of a wrapped link.
type Kind uint8

const (
	// KindNormal links resolve with a single redirect.
	KindNormal Kind = iota + 1
	// KindSensitive links resolve through an interstitial and then a redirect.
	KindSensitive
)

// MaxHops is the upper bound of redirect hops for any link kind.
const MaxHops = 2

// Hops returns the number of hops from the wrapped link to its destination.
func (k Kind) Hops() int {
	switch k {
	case KindNormal:
		return 1
	case KindSensitive:
		return 2
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindSensitive:
		return "sensitive"
	default:
		return "unknown"
	}
}

// ParseKind converts the stored representation back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "normal":
		return KindNormal, nil
	case "sensitive":
		return KindSensitive, nil
	default:
		return 0, fmt.Errorf("unknown link kind %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Category tags a sensitive destination. The zero value means no category.
type Category string

const (
	CategoryNone     Category = ""
	CategoryAdult    Category = "adult"
	CategoryGambling Category = "gambling"
	CategoryCrypto   Category = "crypto"
	CategoryTrading  Category = "trading"
	CategoryDating   Category = "dating"
	CategoryLending  Category = "lending"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryAdult,
	CategoryGambling,
	CategoryCrypto,
	CategoryTrading,
	CategoryDating,
	CategoryLending,
}

// ParseCategory returns the category named by s, or false when s is unknown.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return CategoryNone, false
}

// WrappedLink is the sole persistent entity of the gateway.
type WrappedLink struct {
	ID           string     // ID is the opaque storage primary key.
	ShortID      string     // ShortID is the public code; never reused.
	EncryptedURL string     // EncryptedURL is the cipher text of the destination.
	Kind         Kind       // Kind is decided once at creation.
	Domain       string     // Domain is the lowercase hostname without a leading "www.".
	Category     Category   // Category is empty for normal links.
	TitleAlias   string     // TitleAlias is the only label shown to bots and on the interstitial.
	ClickCount   int64      // ClickCount is an advisory counter.
	CreatedAt    time.Time  // CreatedAt is the creation timestamp.
	ExpiresAt    *time.Time // ExpiresAt is nil for links that never expire.
	CreatedBy    string     // CreatedBy is the optional owner reference.
}

// Expired reports whether the link is past its expiry at now.
func (l *WrappedLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Clone returns a deep copy of the link.
func (l *WrappedLink) Clone() *WrappedLink {
	c := *l
	if l.ExpiresAt != nil {
		exp := *l.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// LinkView is the creator-facing projection of a freshly created link.
type LinkView struct {
	ID          string
	ShortID     string
	OriginalURL string
	Kind        Kind
	Domain      string
	Category    Category
	Alias       string
	ClickCount  int64
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// LinkUpdate holds the only fields that may change after creation.
// A nil field is left untouched.
type LinkUpdate struct {
	TitleAlias  *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// DomainCount is one entry of the top domains ranking.
type DomainCount struct {
	Domain string
	Links  int64
	Clicks int64
}

// Stats aggregates the links of one owner, or of all links when no owner is given.
type Stats struct {
	TotalClicks    int64
	NormalLinks    int64
	SensitiveLinks int64
	TopDomains     []DomainCount
}

// TopDomainsLimit caps the number of ranked domains in Stats.
const TopDomainsLimit = 10
