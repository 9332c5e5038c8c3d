package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"dwetl/internal/model"
)

const (
	NoCity        = "No city"
	Uncategorized = "Uncategorized"

	chartTopN = 10
)

type CategoryCount struct {
	Category      string `json:"category"`
	Count         int64  `json:"count"`
	TotalQuantity int64  `json:"totalQuantity"`
}

type ProductSales struct {
	Product  string          `json:"product"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type DateSales struct {
	Date    string          `json:"date"`
	Count   int64           `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type CityCount struct {
	City  string `json:"city"`
	Count int64  `json:"count"`
}

type CategoryRevenue struct {
	Category   string          `json:"category"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int64           `json:"orderCount"`
}

// Charts holds the dashboard aggregates. Product sales and cities are
// limited to the top ten.
type Charts struct {
	ProductsByCategory []CategoryCount   `json:"productsByCategory"`
	SalesByProduct     []ProductSales    `json:"salesByProduct"`
	SalesByDate        []DateSales       `json:"salesByDate"`
	OrdersByStatus     []StatusCount     `json:"ordersByStatus"`
	CustomersByCity    []CityCount       `json:"customersByCity"`
	RevenueByCategory  []CategoryRevenue `json:"revenueByCategory"`
}

// Charts scans products, customers and orders concurrently and groups them
// for the dashboard. Order items are joined to products by productId.
func (a *Admin) Charts(ctx context.Context) (Charts, error) {
	var (
		products  []model.Document
		customers []model.Document
		orders    []model.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	for coll, dst := range map[string]*[]model.Document{
		model.CollectionProducts:  &products,
		model.CollectionCustomers: &customers,
		model.CollectionOrders:    &orders,
	} {
		g.Go(func() error {
			err := a.store.Scan(gctx, coll, func(d model.Document) error {
				*dst = append(*dst, d)
				return nil
			})
			if err != nil {
				return fmt.Errorf("charts: scan %s: %w", coll, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Charts{}, err
	}

	return Charts{
		ProductsByCategory: productsByCategory(products),
		SalesByProduct:     salesByProduct(orders),
		SalesByDate:        salesByDate(orders),
		OrdersByStatus:     ordersByStatus(orders),
		CustomersByCity:    customersByCity(customers),
		RevenueByCategory:  revenueByCategory(orders, products),
	}, nil
}

func productsByCategory(products []model.Document) []CategoryCount {
	groups := map[string]*CategoryCount{}
	for _, p := range products {
		cat := str(p["category"])
		g, ok := groups[cat]
		if !ok {
			g = &CategoryCount{Category: cat}
			groups[cat] = g
		}
		g.Count++
		g.TotalQuantity += integer(p["quantity"])
	}
	out := make([]CategoryCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func salesByProduct(orders []model.Document) []ProductSales {
	groups := map[string]*ProductSales{}
	for _, o := range orders {
		for _, it := range items(o) {
			name := str(it["productName"])
			g, ok := groups[name]
			if !ok {
				g = &ProductSales{Product: name, Revenue: decimal.Zero}
				groups[name] = g
			}
			g.Quantity += integer(it["quantity"])
			if v, ok := amount(it["total"]); ok {
				g.Revenue = g.Revenue.Add(v)
			}
		}
	}
	out := make([]ProductSales, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Product < out[j].Product
	})
	return top(out)
}

func salesByDate(orders []model.Document) []DateSales {
	groups := map[string]*DateSales{}
	for _, o := range orders {
		day := dateKey(o["orderDate"])
		g, ok := groups[day]
		if !ok {
			g = &DateSales{Date: day, Revenue: decimal.Zero}
			groups[day] = g
		}
		g.Count++
		if v, ok := amount(o["totalAmount"]); ok {
			g.Revenue = g.Revenue.Add(v)
		}
	}
	out := make([]DateSales, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func ordersByStatus(orders []model.Document) []StatusCount {
	counts := map[string]int64{}
	for _, o := range orders {
		counts[str(o["status"])]++
	}
	out := make([]StatusCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, StatusCount{Status: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

func customersByCity(customers []model.Document) []CityCount {
	counts := map[string]int64{}
	for _, c := range customers {
		city := str(c["city"])
		if city == "" {
			city = NoCity
		}
		counts[city]++
	}
	out := make([]CityCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CityCount{City: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	return top(out)
}

// revenueByCategory counts one row per order item, so OrderCount is the
// number of item lines in the category.
func revenueByCategory(orders, products []model.Document) []CategoryRevenue {
	category := make(map[string]string, len(products))
	for _, p := range products {
		if c, ok := p["category"].(string); ok {
			category[str(p["productId"])] = c
		}
	}
	groups := map[string]*CategoryRevenue{}
	for _, o := range orders {
		for _, it := range items(o) {
			cat, ok := category[str(it["productId"])]
			if !ok {
				cat = Uncategorized
			}
			g, ok := groups[cat]
			if !ok {
				g = &CategoryRevenue{Category: cat, Revenue: decimal.Zero}
				groups[cat] = g
			}
			g.OrderCount++
			if v, ok := amount(it["total"]); ok {
				g.Revenue = g.Revenue.Add(v)
			}
		}
	}
	out := make([]CategoryRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func top[T any](s []T) []T {
	if len(s) > chartTopN {
		return s[:chartTopN]
	}
	return s
}

// items returns the order's line items whatever map type the store decoded
// them into.
func items(o model.Document) []map[string]any {
	list, _ := o["items"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		switch m := e.(type) {
		case map[string]any:
			out = append(out, m)
		case model.Document:
			out = append(out, m)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func integer(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float64:
		return int64(t)
	case decimal.Decimal:
		return t.IntPart()
	}
	return 0
}

func dateKey(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.DateOnly)
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC().Format(time.DateOnly)
		}
		return t
	}
	return ""
}
