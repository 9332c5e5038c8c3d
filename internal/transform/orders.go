package transform

import (
	"errors"
	"fmt"

	"github.com/clbanning/mxj"
	"github.com/shopspring/decimal"

	"dwetl/internal/extract"
	"dwetl/internal/model"
)

const entityOrder = "order"

// Orders reads orders.order[*] with nested items.item[*]. Both levels are
// normalized to sequences since the markup tree holds a single occurrence as
// a node rather than a list. A tree without orders.order yields no orders.
func Orders(tree mxj.Map, source string) ([]model.Order, error) {
	root, ok := extract.Node(tree["orders"])
	if !ok {
		return []model.Order{}, nil
	}
	nodes := extract.List(root["order"])
	out := make([]model.Order, 0, len(nodes))
	for i, n := range nodes {
		node, ok := extract.Node(n)
		if !ok {
			return nil, &TransformationError{Entity: entityOrder, Index: i, Err: fmt.Errorf("element is %T, not a node", n)}
		}
		o, err := order(i, node, source)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

type leafReader struct {
	entity string
	index  int
	node   map[string]any
}

func (r leafReader) text(name string) (string, error) {
	s, ok := extract.Text(r.node[name])
	if !ok {
		return "", &TransformationError{Entity: r.entity, Index: r.index, Field: name, Err: errMissing}
	}
	return s, nil
}

func (r leafReader) money(name string) (decimal.Decimal, error) {
	s, err := r.text(name)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := ParseMoney(s)
	if err != nil {
		return decimal.Zero, &TransformationError{Entity: r.entity, Index: r.index, Field: name, Err: err}
	}
	return d, nil
}

func (r leafReader) count(name string) (int64, error) {
	s, err := r.text(name)
	if err != nil {
		return 0, err
	}
	n, err := ParseCount(s)
	if err != nil {
		return 0, &TransformationError{Entity: r.entity, Index: r.index, Field: name, Err: err}
	}
	return n, nil
}

func order(i int, node map[string]any, source string) (model.Order, error) {
	r := leafReader{entity: entityOrder, index: i, node: node}
	o := model.Order{Source: source}
	var err error
	if o.OrderID, err = r.text("orderId"); err != nil {
		return o, err
	}
	if o.CustomerID, err = r.text("customerId"); err != nil {
		return o, err
	}
	raw, err := r.text("orderDate")
	if err != nil {
		return o, err
	}
	if o.OrderDate, err = model.ParseISO(raw); err != nil {
		return o, &TransformationError{Entity: entityOrder, Index: i, Field: "orderDate", Err: err}
	}
	if o.TotalAmount, err = r.money("totalAmount"); err != nil {
		return o, err
	}
	if o.Status, err = r.text("status"); err != nil {
		return o, err
	}

	items, ok := extract.Node(node["items"])
	if !ok {
		return o, &TransformationError{Entity: entityOrder, Index: i, Field: "items", Err: errMissing}
	}
	for j, n := range extract.List(items["item"]) {
		itemNode, ok := extract.Node(n)
		if !ok {
			return o, &TransformationError{Entity: entityOrder, Index: i, Field: fmt.Sprintf("items.item[%d]", j), Err: fmt.Errorf("element is %T, not a node", n)}
		}
		it, err := orderItem(fmt.Sprintf("order[%d].item", i), j, itemNode)
		if err != nil {
			return o, err
		}
		o.Items = append(o.Items, it)
	}
	if len(o.Items) == 0 {
		return o, &TransformationError{Entity: entityOrder, Index: i, Field: "items", Err: errors.New("order has no items")}
	}
	return o, nil
}

func orderItem(entity string, j int, node map[string]any) (model.OrderItem, error) {
	r := leafReader{entity: entity, index: j, node: node}
	var (
		it  model.OrderItem
		err error
	)
	if it.ProductID, err = r.text("productId"); err != nil {
		return it, err
	}
	if it.ProductName, err = r.text("productName"); err != nil {
		return it, err
	}
	if it.Quantity, err = r.count("quantity"); err != nil {
		return it, err
	}
	if it.UnitPrice, err = r.money("unitPrice"); err != nil {
		return it, err
	}
	if it.Total, err = r.money("total"); err != nil {
		return it, err
	}
	return it, nil
}
