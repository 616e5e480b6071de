package classifier

import "github.com/vadimbarashkov/link-gateway/internal/entity"

// DefaultLabel is shown for destinations that are not sensitive.
const DefaultLabel = "External Link"

var categoryAliases = map[entity.Category]string{
	entity.CategoryAdult:    "Premium Content",
	entity.CategoryGambling: "Entertainment Site",
	entity.CategoryCrypto:   "Digital Finance",
	entity.CategoryTrading:  "Investment Platform",
	entity.CategoryDating:   "Social Platform",
	entity.CategoryLending:  "Financial Services",
}

var categoryDescriptions = map[entity.Category]string{
	entity.CategoryAdult:    "This link leads to members-only content on an external site. Continue only if you are of legal age.",
	entity.CategoryGambling: "This link leads to an external entertainment site. Continue only if you are of legal age.",
	entity.CategoryCrypto:   "This link leads to an external digital finance service.",
	entity.CategoryTrading:  "This link leads to an external investment platform.",
	entity.CategoryDating:   "This link leads to an external social platform.",
	entity.CategoryLending:  "This link leads to an external financial services provider.",
}

const defaultDescription = "This link leads to an external site."

// AliasForCategory returns the generic alias of c, or DefaultLabel when c has none.
func AliasForCategory(c entity.Category) string {
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	return DefaultLabel
}

// DescribeCategory returns the generic interstitial text for c.
func DescribeCategory(c entity.Category) string {
	if desc, ok := categoryDescriptions[c]; ok {
		return desc
	}
	return defaultDescription
}

func entry(domain string, c entity.Category, alias string) entity.RegistryEntry {
	if alias == "" {
		alias = AliasForCategory(c)
	}
	return entity.RegistryEntry{Domain: domain, Category: c, Alias: alias}
}

// staticEntries is the built-in sensitive-domain table, keyed by hostname without "www.".
var staticEntries = []entity.RegistryEntry{
	entry("onlyfans.com", entity.CategoryAdult, ""),
	entry("fansly.com", entity.CategoryAdult, ""),
	entry("pornhub.com", entity.CategoryAdult, ""),
	entry("chaturbate.com", entity.CategoryAdult, "Live Creator Content"),
	entry("manyvids.com", entity.CategoryAdult, "Creator Store"),
	entry("justfor.fans", entity.CategoryAdult, ""),
	entry("loyalfans.com", entity.CategoryAdult, ""),
	entry("fancentro.com", entity.CategoryAdult, ""),

	entry("stake.com", entity.CategoryGambling, ""),
	entry("roobet.com", entity.CategoryGambling, ""),
	entry("draftkings.com", entity.CategoryGambling, "Sports Entertainment"),
	entry("fanduel.com", entity.CategoryGambling, "Sports Entertainment"),
	entry("bet365.com", entity.CategoryGambling, ""),
	entry("pokerstars.com", entity.CategoryGambling, ""),

	entry("coinbase.com", entity.CategoryCrypto, ""),
	entry("binance.com", entity.CategoryCrypto, ""),
	entry("kraken.com", entity.CategoryCrypto, ""),
	entry("crypto.com", entity.CategoryCrypto, ""),
	entry("opensea.io", entity.CategoryCrypto, "Digital Collectibles"),

	entry("etoro.com", entity.CategoryTrading, ""),
	entry("webull.com", entity.CategoryTrading, ""),
	entry("robinhood.com", entity.CategoryTrading, ""),
	entry("tradingview.com", entity.CategoryTrading, "Market Data"),

	entry("tinder.com", entity.CategoryDating, ""),
	entry("bumble.com", entity.CategoryDating, ""),
	entry("hinge.co", entity.CategoryDating, ""),
	entry("seeking.com", entity.CategoryDating, ""),
	entry("match.com", entity.CategoryDating, ""),

	entry("moneylion.com", entity.CategoryLending, ""),
	entry("earnin.com", entity.CategoryLending, ""),
	entry("dave.com", entity.CategoryLending, ""),
	entry("possiblefinance.com", entity.CategoryLending, ""),
	entry("brigit.com", entity.CategoryLending, ""),
}

// StaticEntries returns a copy of the built-in sensitive-domain table.
func StaticEntries() []entity.RegistryEntry {
	return append([]entity.RegistryEntry(nil), staticEntries...)
}
