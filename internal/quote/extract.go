package quote

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Page is a fetched quote page in both parsed and raw form.
type Page struct {
	Doc *goquery.Document
	Raw string
}

// Extraction accumulates the fields recovered by the extractor chain.
// Nil pointers are fields no extractor has filled yet.
type Extraction struct {
	Name          string
	Price         *float64
	PreviousClose *float64
	Change        *float64
	ChangePercent *float64
}

// Complete reports whether every numeric field is filled.
func (e *Extraction) Complete() bool {
	return e.Price != nil && e.PreviousClose != nil && e.Change != nil && e.ChangePercent != nil
}

// Extractor recovers quote fields from a page. It fills only fields that are
// still missing and returns false when it matched nothing.
type Extractor interface {
	Name() string
	Extract(page *Page, into *Extraction) bool
}

// DefaultExtractors returns the extractor chain in priority order.
func DefaultExtractors() []Extractor {
	return []Extractor{
		AttributeExtractor{},
		EmbeddedArrayExtractor{},
		PreviousCloseExtractor{},
		TextExtractor{},
	}
}

// RunChain runs every extractor in order until all fields are filled.
func RunChain(page *Page, chain []Extractor) Extraction {
	var ex Extraction
	for _, e := range chain {
		if ex.Complete() && ex.Name != "" {
			break
		}
		e.Extract(page, &ex)
	}
	return ex
}

// AttributeExtractor reads the data-last-price attribute, then the numeric
// array anchored on that price for change and change percent.
type AttributeExtractor struct{}

func (AttributeExtractor) Name() string { return "attribute" }

func (AttributeExtractor) Extract(page *Page, into *Extraction) bool {
	matched := false

	if into.Name == "" {
		if name := displayName(page.Doc); name != "" {
			into.Name = name
			matched = true
		}
	}

	raw, ok := page.Doc.Find("[data-last-price]").First().Attr("data-last-price")
	if !ok {
		return matched
	}
	raw = strings.TrimSpace(raw)
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return matched
	}
	matched = setIfMissing(&into.Price, price) || matched

	anchored := regexp.MustCompile(`\[` + regexp.QuoteMeta(raw) + `,\s*([+-]?\d+(?:\.\d+)?),\s*([+-]?\d+(?:\.\d+)?)`)
	if m := anchored.FindStringSubmatch(page.Raw); m != nil {
		matched = setParsed(&into.Change, m[1]) || matched
		matched = setParsed(&into.ChangePercent, m[2]) || matched
	}
	return matched
}

var embeddedArrayPattern = regexp.MustCompile(`null,null,\[(\d+(?:\.\d+)?),([+-]?\d+(?:\.\d+)?),([+-]?\d+(?:\.\d+)?)`)

// EmbeddedArrayExtractor reads the [price,change,percent] array that follows
// two nulls in the page's embedded data.
type EmbeddedArrayExtractor struct{}

func (EmbeddedArrayExtractor) Name() string { return "embedded-array" }

func (EmbeddedArrayExtractor) Extract(page *Page, into *Extraction) bool {
	m := embeddedArrayPattern.FindStringSubmatch(page.Raw)
	if m == nil {
		return false
	}
	matched := setParsed(&into.Price, m[1])
	matched = setParsed(&into.Change, m[2]) || matched
	matched = setParsed(&into.ChangePercent, m[3]) || matched
	return matched
}

// PreviousCloseExtractor finds the "Previous close" label and reads the first
// number that follows it in the markup.
type PreviousCloseExtractor struct{}

func (PreviousCloseExtractor) Name() string { return "previous-close" }

func (PreviousCloseExtractor) Extract(page *Page, into *Extraction) bool {
	if into.PreviousClose != nil {
		return false
	}

	label := page.Doc.Find("body *").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0 && strings.EqualFold(strings.TrimSpace(s.Text()), "previous close")
	}).First()
	if label.Length() == 0 {
		return false
	}

	// The value sits in a sibling of the label or of one of its close ancestors.
	node := label
	for depth := 0; depth < 3 && node.Length() > 0; depth++ {
		found := false
		node.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := parseAmount(s.Text()); ok {
				into.PreviousClose = &v
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
		node = node.Parent()
	}
	return false
}

var (
	currencyPricePattern = regexp.MustCompile(`[₹$]\s?([0-9,]+\.[0-9]{2})`)
	percentPattern       = regexp.MustCompile(`\(([+-]?[0-9,]+\.[0-9]{2})%\)`)
)

// TextExtractor is the last resort: a currency-prefixed price and a
// parenthesised percentage anywhere in the body text.
type TextExtractor struct{}

func (TextExtractor) Name() string { return "text" }

func (TextExtractor) Extract(page *Page, into *Extraction) bool {
	text := page.Doc.Find("body").Text()
	matched := false

	if into.Price == nil {
		if m := currencyPricePattern.FindStringSubmatch(text); m != nil {
			matched = setParsed(&into.Price, m[1])
		}
	}
	if into.Change == nil && into.ChangePercent == nil {
		if m := percentPattern.FindStringSubmatch(text); m != nil {
			matched = setParsed(&into.ChangePercent, m[1]) || matched
		}
	}
	return matched
}

func displayName(doc *goquery.Document) string {
	if name := strings.TrimSpace(doc.Find(".zzDege").First().Text()); name != "" {
		return name
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if name, _, ok := strings.Cut(title, " - Google Finance"); ok {
		return strings.TrimSpace(name)
	}
	return ""
}

func setIfMissing(field **float64, v float64) bool {
	if *field != nil {
		return false
	}
	*field = &v
	return true
}

func setParsed(field **float64, s string) bool {
	if *field != nil {
		return false
	}
	v, ok := parseAmount(s)
	if !ok {
		return false
	}
	*field = &v
	return true
}

// parseAmount parses a number that may carry a currency symbol and thousands separators.
func parseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
