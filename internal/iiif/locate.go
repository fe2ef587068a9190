package iiif

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// PageFetcher retrieves a page as text.
type PageFetcher interface {
	Text(ctx context.Context, rawURL string) (string, error)
}

// Locator finds the info.json URL for a start URL.
type Locator struct {
	Fetcher      PageFetcher
	URLRules     []Rule
	ContentRules []Rule
	Rewrites     []HostRewrite
	Logger       *logging.Logger
}

// NewLocator returns a locator with the default rules and rewrite table.
func NewLocator(fetcher PageFetcher) *Locator {
	return &Locator{
		Fetcher:      fetcher,
		URLRules:     DefaultURLRules(),
		ContentRules: DefaultContentRules(),
		Rewrites:     DefaultHostRewrites(),
	}
}

// Matches reports whether startURL can be resolved without fetching it.
func (l *Locator) Matches(startURL string) bool {
	_, _, ok := firstMatch(l.urlRules(), startURL)
	return ok
}

// Locate returns the manifest URL for startURL. A direct pattern match on the
// URL itself wins; otherwise the page is fetched once and its text searched.
func (l *Locator) Locate(ctx context.Context, startURL string) (string, error) {
	if derived, rule, ok := firstMatch(l.urlRules(), startURL); ok {
		l.debug("Manifest derived from start URL",
			zap.String("rule", rule),
			zap.String("start_url", startURL))
		return applyRewrites(derived, l.Rewrites), nil
	}

	if l.Fetcher == nil {
		return "", ErrNotFound
	}

	text, err := l.Fetcher.Text(ctx, startURL)
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", startURL, err)
	}

	derived, rule, ok := l.searchPage(text)
	if !ok {
		return "", ErrNotFound
	}

	l.debug("Manifest found in page text",
		zap.String("rule", rule),
		zap.String("start_url", startURL))
	return applyRewrites(derived, l.Rewrites), nil
}

// searchPage runs the content rules over the raw text first, then over the
// text with JSON-escaped slashes undone, then over HTML attribute values.
func (l *Locator) searchPage(text string) (string, string, bool) {
	rules := l.contentRules()

	if derived, rule, ok := firstMatch(rules, text); ok {
		return derived, rule, true
	}

	if strings.Contains(text, `\/`) {
		if derived, rule, ok := firstMatch(rules, strings.ReplaceAll(text, `\/`, "/")); ok {
			return derived, rule, true
		}
	}

	for _, value := range attributeValues(text) {
		if derived, rule, ok := firstMatch(rules, value); ok {
			return derived, rule, true
		}
	}

	return "", "", false
}

func attributeValues(text string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil
	}

	var values []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			for _, attr := range node.Attr {
				key := strings.ToLower(attr.Key)
				if key == "src" || key == "href" || key == "content" || strings.HasPrefix(key, "data-") {
					values = append(values, attr.Val)
				}
			}
		}
	})
	return values
}

func (l *Locator) urlRules() []Rule {
	if l.URLRules == nil {
		return DefaultURLRules()
	}
	return l.URLRules
}

func (l *Locator) contentRules() []Rule {
	if l.ContentRules == nil {
		return DefaultContentRules()
	}
	return l.ContentRules
}

func (l *Locator) debug(msg string, fields ...zap.Field) {
	if l.Logger != nil {
		l.Logger.Debug(msg, fields...)
	}
}
