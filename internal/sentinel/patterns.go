package sentinel

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Patterns is the user-agent table the sentinel matches against. Entries are
// case-insensitive substrings.
type Patterns struct {
	// MajorPlatform is the single crawler family that is blocked on action endpoints.
	MajorPlatform []string `yaml:"major_platform"`
	// KnownCrawlers are recognised crawler operators that are never blocked.
	KnownCrawlers []string `yaml:"known_crawlers"`
	// Generic are tokens that mark an unrecognised automated client.
	Generic []string `yaml:"generic"`
}

// DefaultPatterns returns the built-in table.
func DefaultPatterns() Patterns {
	return Patterns{
		MajorPlatform: []string{
			"facebookexternalhit",
			"facebookcatalog",
			"facebot",
			"meta-externalagent",
			"meta-externalfetcher",
		},
		KnownCrawlers: []string{
			"googlebot",
			"google-inspectiontool",
			"adsbot-google",
			"bingbot",
			"applebot",
			"duckduckbot",
			"yandexbot",
			"baiduspider",
			"twitterbot",
			"linkedinbot",
			"pinterestbot",
			"slackbot",
			"discordbot",
			"telegrambot",
			"whatsapp",
			"redditbot",
			"bytespider",
			"embedly",
			"skypeuripreview",
			"snapchat",
		},
		Generic: []string{
			"bot",
			"crawler",
			"spider",
			"scraper",
			"headlesschrome",
			"python-requests",
			"curl/",
			"wget/",
			"go-http-client",
		},
	}
}

// LoadPatterns reads a YAML pattern table from path. Sections missing from
// the file keep their built-in values.
func LoadPatterns(path string) (Patterns, error) {
	const op = "sentinel.LoadPatterns"

	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("%s: failed to read patterns file: %w", op, err)
	}

	var file Patterns
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Patterns{}, fmt.Errorf("%s: failed to decode patterns file: %w", op, err)
	}

	p := DefaultPatterns()
	if len(file.MajorPlatform) > 0 {
		p.MajorPlatform = file.MajorPlatform
	}
	if len(file.KnownCrawlers) > 0 {
		p.KnownCrawlers = file.KnownCrawlers
	}
	if len(file.Generic) > 0 {
		p.Generic = file.Generic
	}

	return p.normalized(), nil
}

func (p Patterns) normalized() Patterns {
	return Patterns{
		MajorPlatform: normalize(p.MajorPlatform),
		KnownCrawlers: normalize(p.KnownCrawlers),
		Generic:       normalize(p.Generic),
	}
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchAny(ua string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(ua, p) {
			return p, true
		}
	}
	return "", false
}
