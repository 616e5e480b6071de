package entity

// Classification is the result of classifying a destination URL.
type Classification struct {
	Kind     Kind
	Category Category
	Alias    string
	Domain   string
}

// Label returns the crawler-safe alias for sensitive destinations and fallback otherwise.
func (c Classification) Label(fallback string) string {
	if c.Kind == KindSensitive && c.Alias != "" {
		return c.Alias
	}
	return fallback
}

// RegistryEntry is a sensitive domain known to a registry.
type RegistryEntry struct {
	Domain   string
	Category Category
	Alias    string
}

// BotVerdict is the bot sentinel's decision about one request.
type BotVerdict struct {
	IsBot                  bool
	IsKnownCrawlerOperator bool
	ShouldBlock            bool
	Reason                 string
}

// RequesterMeta describes the caller of a gateway operation.
type RequesterMeta struct {
	UserAgent string
	ClientIP  string
	Path      string
}
