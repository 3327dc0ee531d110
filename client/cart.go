package client

import (
	"github.com/shopspring/decimal"

	"github.com/judyrop/tequilas-restaurant/internal/service"
)

type CartItem struct {
	ProductID uint
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Delivery is the checkout information sent with an order.
type Delivery struct {
	FullName      string
	Address       string
	ContactNumber string
	PaymentMethod string
}

// Cart is an immutable snapshot of the items a shopper has picked. Every
// change returns a new Cart and leaves the receiver untouched. Nothing is sent
// to the server until checkout.
type Cart struct {
	items []CartItem
}

// Add puts item in the cart, or raises the quantity when the product is
// already there. Quantities below 1 count as 1.
func (c Cart) Add(item CartItem) Cart {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	items := c.Items()
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			return Cart{items: items}
		}
	}
	return Cart{items: append(items, item)}
}

func (c Cart) Remove(productID uint) Cart {
	items := make([]CartItem, 0, len(c.items))
	for _, it := range c.items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	return Cart{items: items}
}

// UpdateQuantity sets the product's quantity, clamped to at least 1. Unknown
// products leave the cart unchanged.
func (c Cart) UpdateQuantity(productID uint, n int) Cart {
	if n < 1 {
		n = 1
	}
	items := c.Items()
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = n
		}
	}
	return Cart{items: items}
}

func (c Cart) Clear() Cart {
	return Cart{}
}

// Items returns a copy of the cart's lines in the order they were added.
func (c Cart) Items() []CartItem {
	items := make([]CartItem, len(c.items))
	copy(items, c.items)
	return items
}

func (c Cart) Len() int {
	return len(c.items)
}

func (c Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Count is the number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Total is the cart value at the prices shown to the shopper. The server
// re-prices the order at checkout.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c Cart) ToOrderRequest(d Delivery) service.CreateOrderRequest {
	req := service.CreateOrderRequest{
		FullName:      d.FullName,
		Address:       d.Address,
		ContactNumber: d.ContactNumber,
		PaymentMethod: d.PaymentMethod,
		OrderItems:    make([]service.OrderItemRequest, 0, len(c.items)),
	}
	for _, it := range c.items {
		req.OrderItems = append(req.OrderItems, service.OrderItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return req
}
