package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"javea-listings/models"
	"javea-listings/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ByStatus:       make(map[string]int),
		ByMunicipality: make(map[string]int),
		ByArea:         make(map[string]int),
		ByType:         make(map[string]int),
		Translated:     make(map[string]int),
	}

	var priced []*models.Listing
	for _, l := range listings {
		if l == nil || l.Candidate == nil {
			continue
		}
		report.TotalListings++
		c := l.Candidate

		status := c.Status
		if status == "" {
			status = "unknown"
		}
		report.ByStatus[status]++
		if l.Location.Municipality != "" {
			report.ByMunicipality[l.Location.Municipality]++
		}
		if l.Location.AreaSlug != "" {
			report.ByArea[l.Location.AreaSlug]++
		}
		report.ByType[string(c.Type)]++
		if l.Location.Coordinates != nil {
			report.Geocoded++
		}
		for lang, text := range l.Translations.Title {
			if text != "" && text != c.Title {
				report.Translated[lang]++
			}
		}
		if c.Price > 0 {
			priced = append(priced, l)
		}
	}

	// Price stats (only listings with price > 0)
	if len(priced) > 0 {
		report.MinPrice = priced[0].Candidate.Price
		report.MaxPrice = priced[0].Candidate.Price
		report.MostExpensive = priced[0]
		var total int64
		for _, l := range priced {
			p := l.Candidate.Price
			total += p
			if p < report.MinPrice {
				report.MinPrice = p
			}
			if p > report.MaxPrice {
				report.MaxPrice = p
				report.MostExpensive = l
			}
		}
		report.AveragePrice = (total + int64(len(priced))/2) / int64(len(priced))
	}

	return report
}

// Print writes the report to w.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport, run *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 PROPERTY PROCESSING SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if run != nil {
		fmt.Fprintf(w, "  Processed            : \033[1m%d\033[0m\n", run.Processed)
		fmt.Fprintf(w, "  Unique               : \033[1m%d\033[0m\n", run.Accepted)
		fmt.Fprintf(w, "  Duplicates removed   : \033[1m%d\033[0m\n", run.Duplicates)
		fmt.Fprintf(w, "  Failed               : \033[1m%d\033[0m\n", run.Failed)
	}
	fmt.Fprintf(w, "  Listings             : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With coordinates     : \033[1m%d\033[0m\n", r.Geocoded)
	for _, lang := range sortedKeys(r.Translated) {
		fmt.Fprintf(w, "  Translated (%s)      : \033[1m%d\033[0m\n", lang, r.Translated[lang])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m€%d\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m€%d\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m€%d\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Candidate.Title, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Location.Display(r.MostExpensive.Candidate.LocationText))
		fmt.Fprintf(w, "  Price    : \033[1;31m€%d\033[0m\n", r.MostExpensive.Candidate.Price)
		fmt.Fprintln(w)
	}

	printCounts(w, "Listings by Status", r.ByStatus, thin)
	printCounts(w, "Listings by Municipality", r.ByMunicipality, thin)
	printCounts(w, "Listings by Area", r.ByArea, thin)
	printCounts(w, "Listings by Type", r.ByType, thin)

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title string, counts map[string]int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, n := range counts {
		rows = append(rows, keyCount{k, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, row := range rows {
		bar := strings.Repeat("█", min(row.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(row.key, 28), bar, row.count)
	}
	fmt.Fprintln(w)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
