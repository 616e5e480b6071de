package classifier

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

// keywordGroup is a set of revealing words for one category and the generic
// word that replaces them in crawler-facing text.
type keywordGroup struct {
	category    entity.Category
	keywords    []string
	replacement string
}

var keywordGroups = []keywordGroup{
	{
		category: entity.CategoryAdult,
		keywords: []string{
			"onlyfans", "fansly", "pornhub", "porn", "xxx", "nsfw", "adult", "nude",
			"naked", "sex", "erotic", "camgirl", "escort", "fetish", "lewd",
		},
		replacement: "exclusive",
	},
	{
		category: entity.CategoryGambling,
		keywords: []string{
			"casino", "gambling", "gamble", "betting", "sportsbook", "poker", "slots",
			"roulette", "blackjack", "jackpot", "wager", "bet365",
		},
		replacement: "gaming",
	},
	{
		category: entity.CategoryCrypto,
		keywords: []string{
			"crypto", "bitcoin", "btc", "ethereum", "blockchain", "altcoin", "memecoin",
			"defi", "nft", "web3", "binance", "coinbase",
		},
		replacement: "digital",
	},
	{
		category: entity.CategoryTrading,
		keywords: []string{
			"forex", "trading", "daytrade", "day trade", "options flow", "margin call",
			"signals group",
		},
		replacement: "investing",
	},
	{
		category: entity.CategoryDating,
		keywords: []string{
			"dating", "hookup", "sugar daddy", "sugarbaby", "sugar baby", "singles near",
			"tinder", "one night",
		},
		replacement: "social",
	},
	{
		category: entity.CategoryLending,
		keywords: []string{
			"payday", "loan", "lending", "cash advance", "title pawn", "bad credit",
			"no credit check",
		},
		replacement: "financial",
	},
}

var (
	allKeywords      []string
	keywordsByCat    = map[entity.Category][]string{}
	sanitizePatterns []sanitizePattern
)

type sanitizePattern struct {
	re          *regexp.Regexp
	replacement string
}

func init() {
	for _, g := range keywordGroups {
		keywordsByCat[g.category] = g.keywords
		allKeywords = append(allKeywords, g.keywords...)

		kws := append([]string(nil), g.keywords...)
		sort.Slice(kws, func(i, j int) bool { return len(kws[i]) > len(kws[j]) })

		quoted := make([]string, len(kws))
		for i, kw := range kws {
			quoted[i] = regexp.QuoteMeta(kw)
		}

		sanitizePatterns = append(sanitizePatterns, sanitizePattern{
			re:          regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`),
			replacement: g.replacement,
		})
	}
}

// Keywords returns the revealing keywords of category c.
func Keywords(c entity.Category) []string {
	return append([]string(nil), keywordsByCat[c]...)
}

// ContainsSensitiveKeywords reports whether text contains any sensitive keyword, ignoring case.
func ContainsSensitiveKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range allKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// containsCategoryKeywords reports whether text contains a keyword of category c.
func containsCategoryKeywords(c entity.Category, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywordsByCat[c] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SanitizeForCrawlers replaces every sensitive keyword with its group's generic word.
// Applying it twice yields the same text as applying it once.
func SanitizeForCrawlers(text string) string {
	for n := 0; n < len(sanitizePatterns)+1; n++ {
		next := text
		for _, p := range sanitizePatterns {
			next = p.re.ReplaceAllLiteralString(next, p.replacement)
		}
		if next == text {
			return next
		}
		text = next
	}
	return text
}
