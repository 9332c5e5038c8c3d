package transform

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"dwetl/internal/model"
)

// UnknownAnalyst is used when a report has no "Analista:" line.
const UnknownAnalyst = "Unknown"

const (
	labelObservations    = "OBSERVACIONES:"
	labelRecommendations = "RECOMENDACIONES:"
)

var (
	reReportDate     = regexp.MustCompile(`Fecha:\s*(\d{4}-\d{2}-\d{2})`)
	reAnalyst        = regexp.MustCompile(`Analista:\s*(.+)`)
	reTotal          = regexp.MustCompile(`TOTAL GENERAL:\s*\$?([\d,]+\.?\d*)`)
	reProductSale    = regexp.MustCompile(`- (.+): (\d+) unidades, \$([\d,]+\.?\d*)`)
	reRecommendation = regexp.MustCompile(`\d+\.\s*(.+)`)
)

// SalesReport extracts a report from free text. It never fails: each field
// that cannot be found falls back to its default.
func SalesReport(text, source string) model.SalesReport {
	r := model.SalesReport{
		ReportDate:      Now(),
		Analyst:         UnknownAnalyst,
		TotalSales:      decimal.Zero,
		ProductSales:    []model.ProductSale{},
		Recommendations: []string{},
		Source:          source,
	}

	if m := reReportDate.FindStringSubmatch(text); m != nil {
		if t, err := model.ParseISO(m[1]); err == nil {
			r.ReportDate = t
		}
	}
	if m := reAnalyst.FindStringSubmatch(text); m != nil {
		if a := strings.TrimSpace(m[1]); a != "" {
			r.Analyst = a
		}
	}
	if m := reTotal.FindStringSubmatch(text); m != nil {
		if d, err := ParseMoney(m[1]); err == nil {
			r.TotalSales = d
		}
	}
	for _, m := range reProductSale.FindAllStringSubmatch(text, -1) {
		qty, err := ParseCount(m[2])
		if err != nil {
			continue
		}
		rev, err := ParseMoney(m[3])
		if err != nil {
			rev = decimal.Zero
		}
		r.ProductSales = append(r.ProductSales, model.ProductSale{
			ProductName: strings.TrimSpace(m[1]),
			Quantity:    qty,
			Revenue:     rev,
		})
	}

	r.Observations = observations(text)

	if i := strings.Index(text, labelRecommendations); i >= 0 {
		rest := text[i+len(labelRecommendations):]
		for _, m := range reRecommendation.FindAllStringSubmatch(rest, -1) {
			if rec := strings.TrimSpace(m[1]); rec != "" {
				r.Recommendations = append(r.Recommendations, rec)
			}
		}
	}
	return r
}

// observations returns the block after OBSERVACIONES: up to the next
// RECOMENDACIONES: label or the end of the text.
func observations(text string) string {
	i := strings.Index(text, labelObservations)
	if i < 0 {
		return ""
	}
	body := text[i+len(labelObservations):]
	if j := strings.Index(body, labelRecommendations); j >= 0 {
		body = body[:j]
	}
	return strings.TrimSpace(body)
}
