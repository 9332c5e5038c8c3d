package transform

import (
	"encoding/json"
	"fmt"
	"strconv"

	"dwetl/internal/model"
)

const entityCustomer = "customer"

// CustomersKey is the top-level key holding the customer list.
const CustomersKey = "customers"

// CustomerEntries returns the entries under the customers key, or nil when
// the key is absent or not a list.
func CustomerEntries(graph any) []any {
	obj, ok := graph.(map[string]any)
	if !ok {
		return nil
	}
	list, _ := obj[CustomersKey].([]any)
	return list
}

// Customers flattens address and preferences into top-level fields. It
// returns an empty slice when the customers key is missing.
func Customers(graph any, source string) ([]model.Customer, error) {
	entries := CustomerEntries(graph)
	out := make([]model.Customer, 0, len(entries))
	for i, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			return nil, &TransformationError{Entity: entityCustomer, Index: i, Err: fmt.Errorf("entry is %T, not an object", e)}
		}
		c, err := customer(i, obj, source)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func customer(i int, obj map[string]any, source string) (model.Customer, error) {
	required := func(name string) (string, error) {
		s, ok := scalarText(obj[name])
		if !ok {
			return "", &TransformationError{Entity: entityCustomer, Index: i, Field: name, Err: errMissing}
		}
		return s, nil
	}
	c := model.Customer{Source: source, Language: "es"}
	var err error
	if c.CustomerID, err = required("customerId"); err != nil {
		return c, err
	}
	if c.Name, err = required("name"); err != nil {
		return c, err
	}
	if c.Email, err = required("email"); err != nil {
		return c, err
	}
	c.Phone, _ = scalarText(obj["phone"])

	raw, err := required("registrationDate")
	if err != nil {
		return c, err
	}
	if c.RegistrationDate, err = model.ParseISO(raw); err != nil {
		return c, &TransformationError{Entity: entityCustomer, Index: i, Field: "registrationDate", Err: err}
	}

	if addr, ok := obj["address"].(map[string]any); ok {
		c.City, _ = scalarText(addr["city"])
		c.Country, _ = scalarText(addr["country"])
	}
	if prefs, ok := obj["preferences"].(map[string]any); ok {
		c.Newsletter = truthy(prefs["newsletter"])
		if lang, ok := scalarText(prefs["language"]); ok && lang != "" {
			c.Language = lang
		}
	}
	return c, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	}
	return false
}
