package homefinders

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"javea-listings/models"
)

var (
	digitsRegexp   = regexp.MustCompile(`\d+`)
	bedroomRegexp  = regexp.MustCompile(`(?i)\d+\s*bedroom`)
	bathroomRegexp = regexp.MustCompile(`(?i)\d+\s*bathroom`)
	styleURLRegexp = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)
)

// propertyTypeWords identify the bullet that carries the property type.
var propertyTypeWords = []string{"apartment", "villa", "house", "penthouse", "townhouse", "plot", "finca", "flat", "floor"}

// featureKeywords maps check-marked bullet text onto standard feature names.
// The first matching keyword wins.
var featureKeywords = []struct {
	keywords []string
	feature  string
}{
	{[]string{"parking", "garage"}, "parking"},
	{[]string{"terrace"}, "terrace"},
	{[]string{"balcony"}, "balcony"},
	{[]string{"view"}, "views"},
	{[]string{"air con", "air-con"}, "air-conditioning"},
	{[]string{"heating"}, "heating"},
	{[]string{"storage"}, "storage"},
	{[]string{"lift", "elevator"}, "lift"},
	{[]string{"garden"}, "garden"},
	{[]string{"gym"}, "gym"},
	{[]string{"beach"}, "near-beach"},
	{[]string{"double glaz"}, "double-glazing"},
	{[]string{"furnished"}, "furnished"},
	{[]string{"new build", "new construction"}, "new-build"},
}

// listPage is what a search results page yields.
type listPage struct {
	URLs       []string
	TotalPages int
	Summary    string
}

// parseListPage extracts property detail links and the number of result
// pages from a search results page.
func parseListPage(doc *goquery.Document, baseURL string) listPage {
	var page listPage
	page.Summary = cleanText(doc.Find(".propertyiesFound").First().Text())
	page.TotalPages = doc.Find(".pagBtn").Length()

	seen := make(map[string]struct{})
	doc.Find(".featDetailCont a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "/property/") || strings.Contains(href, "javascript") {
			return
		}
		full := resolveURL(baseURL, href)
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		page.URLs = append(page.URLs, full)
	})
	return page
}

// parseDetail extracts one listing from a property detail page.
func parseDetail(doc *goquery.Document, pageURL string, now time.Time) *models.ListingCandidate {
	c := &models.ListingCandidate{
		SourceURL: pageURL,
		Title:     "Property",
		Status:    "available",
		ScrapedAt: now,
		Features:  []string{},
		Images:    []string{},
	}

	if title := cleanText(doc.Find("#propertyTitle h1").First().Text()); title != "" {
		c.Title = title
	}

	ref := doc.Find(".propRefCont span.w50:first-child").First()
	if ref.Length() == 0 {
		ref = doc.Find(".propRefCont span").First()
	}
	c.SourceReference = cleanText(ref.Text())
	if c.SourceReference == "" {
		c.SourceReference = lastPathSegment(pageURL)
	}
	c.ID = models.GenerateID(c.SourceReference, now)

	c.Price = extractPrice(doc.Find(".propRefCont .pricePV").First().Text())

	features := newFeatureSet()
	var typeText string
	var hasPool bool

	doc.Find(".bulletList li").Each(func(_ int, item *goquery.Selection) {
		text := cleanText(item.Text())
		lower := strings.ToLower(text)
		has := func(icon string) bool { return item.Find(icon).Length() > 0 }

		switch {
		case has(".fa-building"):
			if containsAny(lower, propertyTypeWords...) {
				typeText = text
			} else if strings.Contains(lower, "build") && strings.Contains(text, "m²") {
				c.Specs.BuildSize = extractNumber(text)
			}
		case has(".fa-map-marker-alt"):
			c.LocationText = text
		case has(".fa-bed") || bedroomRegexp.MatchString(text):
			c.Specs.Bedrooms = extractNumber(text)
		case has(".fa-bath") || (bathroomRegexp.MatchString(text) && !strings.Contains(lower, "en-suite")):
			c.Specs.Bathrooms = extractNumber(text)
		case strings.Contains(text, "Build") && strings.Contains(text, "m²"):
			c.Specs.BuildSize = extractNumber(text)
		case strings.Contains(text, "Terrace") && strings.Contains(text, "m²"):
			c.Specs.TerraceSize = extractNumber(text)
		case strings.Contains(text, "Plot") && strings.Contains(text, "m²"):
			if n := extractNumber(text); n != nil && *n > 0 {
				c.Specs.PlotSize = n
			}
		case strings.Contains(lower, "condition"):
			// not stored
		case has(".fa-swimming-pool") || strings.Contains(lower, "pool"):
			hasPool = true
		}

		if has(".fa-check") && text != "" {
			for _, fk := range featureKeywords {
				if containsAny(lower, fk.keywords...) {
					features.add(fk.feature)
					break
				}
			}
		}
	})
	c.Type = models.ParsePropertyType(typeText)

	if hasPool || doc.Find(".fa-swimming-pool").Length() > 0 {
		features.add("pool")
	}
	if c.Specs.PlotSize != nil && *c.Specs.PlotSize > 50 {
		features.add("garden")
	}

	c.Description = parseDescription(doc)

	doc.Find("#mainPhotos li .mainPhotoImgContainer a").Each(func(_ int, a *goquery.Selection) {
		style, _ := a.Attr("style")
		if m := styleURLRegexp.FindStringSubmatch(style); m != nil && !containsString(c.Images, m[1]) {
			c.Images = append(c.Images, m[1])
		}
	})

	overlay := strings.ToLower(doc.Find(".photoOverlayText").First().Text())
	switch {
	case strings.Contains(overlay, "reserved"):
		c.Status = "reserved"
	case strings.Contains(overlay, "sold"):
		c.Status = "sold"
	case strings.Contains(overlay, "new build"):
		features.add("new-build")
	}

	c.Features = features.list
	return c
}

func parseDescription(doc *goquery.Document) string {
	container := doc.Find(".propDescCont .w100").First()
	if container.Length() == 0 {
		container = doc.Find(".propDescCont").First()
	}
	if container.Length() == 0 {
		return ""
	}

	var paragraphs []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := cleanText(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}

	var lines []string
	for _, line := range strings.Split(container.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// featureSet keeps features unique in first-seen order.
type featureSet struct {
	list []string
}

func newFeatureSet() *featureSet {
	return &featureSet{list: []string{}}
}

func (f *featureSet) add(feature string) {
	if !containsString(f.list, feature) {
		f.list = append(f.list, feature)
	}
}

// extractPrice reads "€ 1.250.000" or "1,250,000 €" as 1250000.
func extractPrice(text string) int64 {
	clean := strings.NewReplacer("€", "", ",", "", ".", "").Replace(text)
	m := digitsRegexp.FindString(clean)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func extractNumber(text string) *int {
	clean := strings.NewReplacer("€", "", "$", "", "£", "", ",", "").Replace(text)
	clean = strings.Join(strings.Fields(clean), "")
	m := digitsRegexp.FindString(clean)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func lastPathSegment(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func resultsPageURL(searchURL string, page int) string {
	return fmt.Sprintf("%s&page=%d&limit=12&order=pasc", searchURL, page)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
