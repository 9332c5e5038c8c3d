// Package model holds the canonical warehouse entities and the run descriptors
// that flow through the ETL pipeline.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document is the stored shape of a record: field name to value.
type Document map[string]any

// Document returns d itself so that a plain document satisfies Record.
func (d Document) Document() Document { return d }

// Record is anything the loader can persist.
type Record interface {
	Document() Document
}

// Product is the canonical shape of a tabular source row.
type Product struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	CreatedAt time.Time       `json:"createdAt"`
	Source    string          `json:"source"`
}

func (p Product) Document() Document {
	return Document{
		"productId": p.ProductID,
		"name":      p.Name,
		"category":  p.Category,
		"price":     p.Price,
		"quantity":  p.Quantity,
		"createdAt": p.CreatedAt,
		"source":    p.Source,
	}
}

// Customer is the canonical shape of a structured-object customer entry.
// Phone, City and Country may be empty.
type Customer struct {
	CustomerID       string    `json:"customerId"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	City             string    `json:"city"`
	Country          string    `json:"country"`
	RegistrationDate time.Time `json:"registrationDate"`
	Newsletter       bool      `json:"newsletter"`
	Language         string    `json:"language"`
	Source           string    `json:"source"`
}

func (c Customer) Document() Document {
	return Document{
		"customerId":       c.CustomerID,
		"name":             c.Name,
		"email":            c.Email,
		"phone":            c.Phone,
		"city":             c.City,
		"country":          c.Country,
		"registrationDate": c.RegistrationDate,
		"newsletter":       c.Newsletter,
		"language":         c.Language,
		"source":           c.Source,
	}
}

// OrderItem is one line of an Order. Total is kept as given by the source.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

// Order is the canonical shape of a hierarchical-markup order.
type Order struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	OrderDate   time.Time       `json:"orderDate"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
	Source      string          `json:"source"`
}

func (o Order) Document() Document {
	items := make([]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"productId":   it.ProductID,
			"productName": it.ProductName,
			"quantity":    it.Quantity,
			"unitPrice":   it.UnitPrice,
			"total":       it.Total,
		})
	}
	return Document{
		"orderId":     o.OrderID,
		"customerId":  o.CustomerID,
		"orderDate":   o.OrderDate,
		"items":       items,
		"totalAmount": o.TotalAmount,
		"status":      o.Status,
		"source":      o.Source,
	}
}

// ProductSale is one "- name: N unidades, $X" line of a sales report.
type ProductSale struct {
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// SalesReport is extracted from free text. It is keyed by (ReportDate, Analyst).
type SalesReport struct {
	ReportDate      time.Time       `json:"reportDate"`
	Analyst         string          `json:"analyst"`
	TotalSales      decimal.Decimal `json:"totalSales"`
	ProductSales    []ProductSale   `json:"productSales"`
	Observations    string          `json:"observations"`
	Recommendations []string        `json:"recommendations"`
	Source          string          `json:"source"`
}

func (r SalesReport) Document() Document {
	sales := make([]any, 0, len(r.ProductSales))
	for _, s := range r.ProductSales {
		sales = append(sales, map[string]any{
			"productName": s.ProductName,
			"quantity":    s.Quantity,
			"revenue":     s.Revenue,
		})
	}
	recs := make([]any, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		recs = append(recs, rec)
	}
	return Document{
		"reportDate":      r.ReportDate,
		"analyst":         r.Analyst,
		"totalSales":      r.TotalSales,
		"productSales":    sales,
		"observations":    r.Observations,
		"recommendations": recs,
		"source":          r.Source,
	}
}

// DataQuality ratios are in [0,1].
type DataQuality struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
	Timeliness   string  `json:"timeliness"`
}

type Lineage struct {
	SourceSystem     string `json:"sourceSystem"`
	ExtractionMethod string `json:"extractionMethod"`
	Frequency        string `json:"frequency"`
	Retention        string `json:"retention"`
}

// Metadata describes a source; Source is its unique key.
type Metadata struct {
	Source      string         `json:"source"`
	Version     string         `json:"version"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Schema      map[string]any `json:"schema"`
	DataQuality DataQuality    `json:"dataQuality"`
	Lineage     Lineage        `json:"lineage"`
}

func (m Metadata) Document() Document {
	schema := m.Schema
	if schema == nil {
		schema = map[string]any{}
	}
	return Document{
		"source":      m.Source,
		"version":     m.Version,
		"lastUpdated": m.LastUpdated,
		"schema":      schema,
		"dataQuality": map[string]any{
			"completeness": m.DataQuality.Completeness,
			"accuracy":     m.DataQuality.Accuracy,
			"consistency":  m.DataQuality.Consistency,
			"timeliness":   m.DataQuality.Timeliness,
		},
		"lineage": map[string]any{
			"sourceSystem":     m.Lineage.SourceSystem,
			"extractionMethod": m.Lineage.ExtractionMethod,
			"frequency":        m.Lineage.Frequency,
			"retention":        m.Lineage.Retention,
		},
	}
}
