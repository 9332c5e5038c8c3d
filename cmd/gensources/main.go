package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clbanning/mxj"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type catalogItem struct {
	id       string
	name     string
	category string
	price    decimal.Decimal
}

var catalog = []catalogItem{
	{"P001", "Laptop Pro", "Electrónica", decimal.RequireFromString("1500.00")},
	{"P002", "Mouse Inalámbrico", "Accesorios", decimal.RequireFromString("30.00")},
	{"P003", "Teclado Mecánico", "Accesorios", decimal.RequireFromString("89.90")},
	{"P004", "Monitor 27", "Electrónica", decimal.RequireFromString("320.00")},
	{"P005", "Silla Ergonómica", "Mobiliario", decimal.RequireFromString("245.50")},
}

var cities = [][2]string{{"Madrid", "España"}, {"Bogotá", "Colombia"}, {"Lima", "Perú"}, {"Ciudad de México", "México"}}

func main() {
	var (
		dir       string
		customers int
		orders    int
		seed      int64
		xlsx      bool
	)
	flag.StringVar(&dir, "out", "data/sources", "output directory")
	flag.IntVar(&customers, "customers", 20, "number of customers")
	flag.IntVar(&orders, "orders", 50, "number of orders")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	flag.BoolVar(&xlsx, "xlsx", false, "also write products.xlsx")
	flag.Parse()

	g := generator{dir: dir, rng: rand.New(rand.NewSource(seed)), base: time.Now().UTC().Truncate(24 * time.Hour)}
	if err := g.all(customers, orders, xlsx); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
	log.Printf("generated sources in %s (customers=%d orders=%d)", dir, customers, orders)
}

type generator struct {
	dir  string
	rng  *rand.Rand
	base time.Time
}

func (g generator) all(customers, orders int, xlsx bool) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	steps := []func() error{
		g.productsCSV,
		func() error { return g.customersJSON(customers) },
		func() error { return g.ordersXML(customers, orders) },
		g.salesReport,
		g.metadataJSON,
	}
	if xlsx {
		steps = append(steps, g.productsXLSX)
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

var productHeader = []string{"id", "product_name", "category", "price", "quantity", "created_at"}

func (g generator) productRows() [][]string {
	rows := make([][]string, 0, len(catalog))
	for i, p := range catalog {
		rows = append(rows, []string{
			p.id, p.name, p.category, p.price.StringFixed(2),
			strconv.Itoa(5 + g.rng.Intn(200)),
			g.base.AddDate(0, 0, -30*(i+1)).Format("2006-01-02"),
		})
	}
	return rows
}

func (g generator) productsCSV() error {
	f, err := os.Create(filepath.Join(g.dir, "products.csv"))
	if err != nil {
		return fmt.Errorf("create products.csv: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(productHeader); err != nil {
		return fmt.Errorf("write products.csv: %w", err)
	}
	if err := w.WriteAll(g.productRows()); err != nil {
		return fmt.Errorf("write products.csv: %w", err)
	}
	return nil
}

func (g generator) productsXLSX() error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := append([][]string{productHeader}, g.productRows()...)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return fmt.Errorf("write products.xlsx: %w", err)
			}
		}
	}
	if err := f.SaveAs(filepath.Join(g.dir, "products.xlsx")); err != nil {
		return fmt.Errorf("save products.xlsx: %w", err)
	}
	return nil
}

func customerID(i int) string { return fmt.Sprintf("C%03d", i+1) }

func (g generator) customersJSON(n int) error {
	names := []string{"Ana", "Luis", "María", "Jorge", "Lucía", "Pedro", "Sofía", "Diego"}
	list := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		city := cities[g.rng.Intn(len(cities))]
		list = append(list, map[string]any{
			"customerId":       customerID(i),
			"name":             fmt.Sprintf("%s %d", name, i+1),
			"email":            fmt.Sprintf("%s%d@example.com", strings.ToLower(asciiName(name)), i+1),
			"phone":            fmt.Sprintf("+34 600 %03d %03d", g.rng.Intn(1000), g.rng.Intn(1000)),
			"address":          map[string]any{"street": fmt.Sprintf("Calle %d", 1+g.rng.Intn(99)), "city": city[0], "country": city[1]},
			"registrationDate": g.base.AddDate(0, -g.rng.Intn(24), -g.rng.Intn(28)).Format("2006-01-02"),
			"preferences":      map[string]any{"newsletter": g.rng.Intn(2) == 0, "language": "es"},
		})
	}
	b, err := json.MarshalIndent(map[string]any{"customers": list}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal customers: %w", err)
	}
	return os.WriteFile(filepath.Join(g.dir, "customers.json"), b, 0o644)
}

func asciiName(s string) string {
	return strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(s)
}

func (g generator) ordersXML(customers, n int) error {
	statuses := []string{"pending", "shipped", "delivered", "cancelled"}
	list := make([]any, 0, n)
	for i := 0; i < n; i++ {
		items := make([]any, 0, 3)
		total := decimal.Zero
		for j := 0; j <= g.rng.Intn(3); j++ {
			p := catalog[g.rng.Intn(len(catalog))]
			qty := int64(1 + g.rng.Intn(4))
			line := p.price.Mul(decimal.NewFromInt(qty))
			total = total.Add(line)
			items = append(items, map[string]any{
				"productId":   p.id,
				"productName": p.name,
				"quantity":    qty,
				"unitPrice":   p.price.StringFixed(2),
				"total":       line.StringFixed(2),
			})
		}
		list = append(list, map[string]any{
			"orderId":     fmt.Sprintf("O%04d", i+1),
			"customerId":  customerID(g.rng.Intn(max(customers, 1))),
			"orderDate":   g.base.AddDate(0, 0, -g.rng.Intn(90)).Format("2006-01-02"),
			"items":       map[string]any{"item": items},
			"totalAmount": total.StringFixed(2),
			"status":      statuses[g.rng.Intn(len(statuses))],
		})
	}
	b, err := mxj.Map(map[string]any{"orders": map[string]any{"order": list}}).XmlIndent("", "  ")
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}
	return os.WriteFile(filepath.Join(g.dir, "orders.xml"), append([]byte(xmlHeader), b...), 0o644)
}

const xmlHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"

func (g generator) salesReport() error {
	var b strings.Builder
	fmt.Fprintf(&b, "REPORTE DE VENTAS MENSUAL\nFecha: %s\nAnalista: María González\n\n", g.base.Format("2006-01-02"))
	b.WriteString("VENTAS POR PRODUCTO:\n")
	total := decimal.Zero
	for _, p := range catalog {
		units := int64(1 + g.rng.Intn(150))
		revenue := p.price.Mul(decimal.NewFromInt(units))
		total = total.Add(revenue)
		fmt.Fprintf(&b, "- %s: %d unidades, $%s\n", p.name, units, money(revenue))
	}
	fmt.Fprintf(&b, "\nTOTAL GENERAL: $%s\n\n", money(total))
	b.WriteString("OBSERVACIONES:\nLas ventas de accesorios superaron lo previsto.\nEl inventario de monitores es bajo.\n\n")
	b.WriteString("RECOMENDACIONES:\n1. Reponer stock de monitores\n2. Lanzar promoción de sillas\n")
	return os.WriteFile(filepath.Join(g.dir, "sales_report.txt"), []byte(b.String()), 0o644)
}

// money renders d with two decimals and comma thousands separators.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, whole[i])
	}
	return string(out) + frac
}

func (g generator) metadataJSON() error {
	md := map[string]any{
		"source":      "sistema-ventas",
		"version":     "2.1.0",
		"lastUpdated": g.base.Format(time.RFC3339),
		"schema": map[string]any{
			"products":  productHeader,
			"customers": []string{"customerId", "name", "email", "phone", "address", "registrationDate", "preferences"},
		},
		"dataQuality": map[string]any{"completeness": 0.98, "accuracy": 0.95, "consistency": 0.97, "timeliness": "daily"},
		"lineage": map[string]any{
			"sourceSystem":     "ERP",
			"extractionMethod": "batch",
			"frequency":        "daily",
			"retention":        "5 years",
		},
	}
	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(g.dir, "metadata.json"), b, 0o644)
}
