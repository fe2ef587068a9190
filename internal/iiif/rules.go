package iiif

import (
	"regexp"
	"strings"
)

// Rule recognises one kind of URL and derives a manifest URL from its
// captured groups.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	// Derive receives the full submatch slice (index 0 is the whole match).
	Derive func(groups []string) string
}

// Apply returns the manifest URL derived from the leftmost match in text.
func (r Rule) Apply(text string) (string, bool) {
	if r.Pattern == nil || r.Derive == nil {
		return "", false
	}
	groups := r.Pattern.FindStringSubmatch(text)
	if groups == nil {
		return "", false
	}
	derived := r.Derive(groups)
	if derived == "" {
		return "", false
	}
	return derived, true
}

// imageRequestPattern follows the IIIF Image API 2.1 request grammar:
// base, then either /info.json or region/size/rotation/quality.format.
var imageRequestPattern = regexp.MustCompile(
	`(https?://[^"'\s]+)` +
		`(?:/info\.json|` +
		`/\^?(?:full|square|(?:pct:)?\d+,\d+,\d+,\d+)` +
		`/(?:full|max|\d+,|,\d+|pct:\d+|!?\d+,\d+)` +
		`/!?[1-3]?[0-9]?[0-9]` +
		`/(?:color|gray|bitonal|default|native)` +
		`\.(?:jpe?g|tiff?|png|gif|jp2|pdf|webp)` +
		`)`)

var gallicaPattern = regexp.MustCompile(`https?://gallica\.bnf\.fr/ark:/(\w+/\w+)(?:/(f\w+))?`)

// ImageRequestRule matches any IIIF image request or info.json URL.
var ImageRequestRule = Rule{
	Name:    "iiif-image-request",
	Pattern: imageRequestPattern,
	Derive: func(groups []string) string {
		return groups[1] + "/info.json"
	},
}

// GallicaRule turns a Gallica viewer permalink into its IIIF info.json URL.
// The page label defaults to f1 when the permalink does not name one.
var GallicaRule = Rule{
	Name:    "gallica-permalink",
	Pattern: gallicaPattern,
	Derive: func(groups []string) string {
		page := "f1"
		if len(groups) > 2 && groups[2] != "" {
			page = groups[2]
		}
		return "https://gallica.bnf.fr/iiif/ark:/" + groups[1] + "/" + page + "/info.json"
	},
}

// DefaultURLRules are tried in order against the start URL.
func DefaultURLRules() []Rule {
	return []Rule{GallicaRule, ImageRequestRule}
}

// DefaultContentRules are tried in order against fetched page text.
func DefaultContentRules() []Rule {
	return []Rule{ImageRequestRule}
}

// HostRewrite replaces the first occurrence of From with To in a manifest URL.
type HostRewrite struct {
	From string `json:"from" yaml:"from" mapstructure:"from"`
	To   string `json:"to" yaml:"to" mapstructure:"to"`
}

// DefaultHostRewrites routes around known CDN access restrictions.
func DefaultHostRewrites() []HostRewrite {
	return []HostRewrite{
		// micrio.* URLs are hash-protected, the micrio-cdn.* mirror is not.
		{From: "micrio.vangoghmuseum.nl/iiif", To: "micrio-cdn.vangoghmuseum.nl"},
	}
}

func applyRewrites(manifestURL string, rewrites []HostRewrite) string {
	for _, rw := range rewrites {
		if rw.From == "" {
			continue
		}
		manifestURL = strings.Replace(manifestURL, rw.From, rw.To, 1)
	}
	return manifestURL
}

func firstMatch(rules []Rule, text string) (string, string, bool) {
	for _, rule := range rules {
		if derived, ok := rule.Apply(text); ok {
			return derived, rule.Name, true
		}
	}
	return "", "", false
}
