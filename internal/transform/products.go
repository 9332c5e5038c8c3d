package transform

import (
	"dwetl/internal/extract"
	"dwetl/internal/model"
)

const entityProduct = "product"

// Products maps tabular rows to products. Columns: id, product_name,
// category, price, quantity, created_at.
func Products(rows []extract.Row, source string) ([]model.Product, error) {
	out := make([]model.Product, 0, len(rows))
	for i, row := range rows {
		p, err := product(i, row, source)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func product(i int, row extract.Row, source string) (model.Product, error) {
	col := func(name string) (string, error) {
		v, ok := row[name]
		if !ok {
			return "", &TransformationError{Entity: entityProduct, Index: i, Field: name, Err: errMissing}
		}
		return v, nil
	}
	var (
		p   = model.Product{Source: source}
		err error
		raw string
	)
	if p.ProductID, err = col("id"); err != nil {
		return p, err
	}
	if p.Name, err = col("product_name"); err != nil {
		return p, err
	}
	if p.Category, err = col("category"); err != nil {
		return p, err
	}
	if raw, err = col("price"); err != nil {
		return p, err
	}
	if p.Price, err = ParseMoney(raw); err != nil {
		return p, &TransformationError{Entity: entityProduct, Index: i, Field: "price", Err: err}
	}
	if raw, err = col("quantity"); err != nil {
		return p, err
	}
	if p.Quantity, err = ParseCount(raw); err != nil {
		return p, &TransformationError{Entity: entityProduct, Index: i, Field: "quantity", Err: err}
	}
	if raw, err = col("created_at"); err != nil {
		return p, err
	}
	if p.CreatedAt, err = model.ParseISO(raw); err != nil {
		return p, &TransformationError{Entity: entityProduct, Index: i, Field: "created_at", Err: err}
	}
	return p, nil
}
