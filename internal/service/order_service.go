package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/auth"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/models"
)

const (
	unknownProduct = "Unknown Product"
	allTime        = "All time"
	dateLayout     = "2006-01-02"
)

// maxOrderTotal is the largest total the orders.total_amount column holds.
var maxOrderTotal = decimal.RequireFromString("9999999999.99")

type OrderItemRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	Quantity  int  `json:"quantity" validate:"gte=1,lte=1000"`
}

type CreateOrderRequest struct {
	FullName      string             `json:"fullName" validate:"required,max=100"`
	Address       string             `json:"address" validate:"required,max=200"`
	ContactNumber string             `json:"contactNumber" validate:"required,max=20"`
	PaymentMethod string             `json:"paymentMethod" validate:"required,max=50"`
	OrderItems    []OrderItemRequest `json:"orderItems" validate:"required,min=1,dive"`
}

type OrderItemDTO struct {
	ProductID   uint            `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type OrderDTO struct {
	OrderID       uint            `json:"orderId"`
	OrderDate     time.Time       `json:"orderDate"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	FullName      string          `json:"fullName"`
	Address       string          `json:"address"`
	ContactNumber string          `json:"contactNumber"`
	PaymentMethod string          `json:"paymentMethod"`
	OrderItems    []OrderItemDTO  `json:"orderItems"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type OrdersSummary struct {
	TotalOrders  int             `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	DateRange    DateRange       `json:"dateRange"`
	Orders       []OrderDTO      `json:"orders"`
}

// OrderService places orders against current catalog prices and answers
// order history queries.
type OrderService struct {
	store *store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewOrderService(s *store.Store, log zerolog.Logger) *OrderService {
	return &OrderService{store: s, log: log, now: time.Now}
}

// CreateOrder prices req against the catalog and persists the order with its
// items in one transaction. Nothing is written when any product is missing.
func (s *OrderService) CreateOrder(ctx context.Context, actor *auth.Claims, req CreateOrderRequest) (*OrderDTO, error) {
	trimSpace(&req.FullName, &req.Address, &req.ContactNumber, &req.PaymentMethod)
	if err := invalid(fieldErrors(req)); err != nil {
		return nil, err
	}
	if !auth.IsAuthenticated(actor) {
		return nil, apperr.Unauthenticated("authentication required")
	}

	var order *models.Order
	var products map[uint]models.Product
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		products, err = tx.Products.FindByIDs(ctx, distinctProductIDs(req.OrderItems))
		if err != nil {
			return apperr.Internal(err, "failed to load products")
		}
		if missing := missingIDs(req.OrderItems, products); len(missing) > 0 {
			return missingProductsErr(missing)
		}
		order = priceOrder(actor.UserID, req, products, s.now())
		if order.TotalAmount.GreaterThan(maxOrderTotal) {
			return apperr.Validation("order total %s exceeds the maximum of %s",
				order.TotalAmount.StringFixed(2), maxOrderTotal.StringFixed(2))
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return apperr.Internal(err, "failed to save order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("order_id", order.ID).
		Uint("user_id", order.UserID).
		Str("total", order.TotalAmount.StringFixed(2)).
		Int("items", len(order.Items)).
		Msg("order placed")
	dto := project(*order, products)
	return &dto, nil
}

// GetMyOrders returns the actor's orders, newest first.
func (s *OrderService) GetMyOrders(ctx context.Context, actor *auth.Claims) ([]OrderDTO, error) {
	if !auth.IsAuthenticated(actor) {
		return nil, apperr.Unauthenticated("authentication required")
	}
	orders, err := s.store.Orders.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load orders")
	}
	return s.projectAll(ctx, orders)
}

// GetAllOrders returns every order whose creation date falls in the inclusive
// range [fromDate, toDate]. Either bound may be empty.
func (s *OrderService) GetAllOrders(ctx context.Context, actor *auth.Claims, fromDate, toDate string) (*OrdersSummary, error) {
	if !auth.IsAuthenticated(actor) {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if !auth.IsAdmin(actor) {
		return nil, apperr.Forbidden("admin role required")
	}

	fields := map[string]string{}
	from, err := parseDate(fromDate)
	if err != nil {
		fields["fromDate"] = "must be a date in YYYY-MM-DD form"
	}
	to, err := parseDate(toDate)
	if err != nil {
		fields["toDate"] = "must be a date in YYYY-MM-DD form"
	}
	if from != nil && to != nil && from.After(*to) {
		fields["fromDate"] = "must not be after toDate"
	}
	if err := invalid(fields); err != nil {
		return nil, err
	}

	filter := store.OrderFilter{Since: from}
	rng := DateRange{From: allTime, To: allTime}
	if from != nil {
		rng.From = from.Format(dateLayout)
	}
	if to != nil {
		before := to.AddDate(0, 0, 1)
		filter.Before = &before
		rng.To = to.Format(dateLayout)
	}

	orders, err := s.store.Orders.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load orders")
	}
	dtos, err := s.projectAll(ctx, orders)
	if err != nil {
		return nil, err
	}
	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	return &OrdersSummary{
		TotalOrders:  len(orders),
		TotalRevenue: revenue,
		DateRange:    rng,
		Orders:       dtos,
	}, nil
}

// GetOrderByID returns the order to its owner or an admin. Anyone else gets
// the same not-found error as for a missing order.
func (s *OrderService) GetOrderByID(ctx context.Context, actor *auth.Claims, id uint) (*OrderDTO, error) {
	if !auth.IsAuthenticated(actor) {
		return nil, apperr.Unauthenticated("authentication required")
	}
	order, err := s.store.Orders.Get(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Order", id)
	}
	if !auth.CanViewOrder(actor, order.UserID) {
		return nil, apperr.NotFound("Order with ID %d not found", id)
	}
	dtos, err := s.projectAll(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

func (s *OrderService) projectAll(ctx context.Context, orders []models.Order) ([]OrderDTO, error) {
	seen := map[uint]struct{}{}
	var ids []uint
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				ids = append(ids, it.ProductID)
			}
		}
	}
	products, err := s.store.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load products")
	}
	dtos := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, project(o, products))
	}
	return dtos, nil
}

func distinctProductIDs(items []OrderItemRequest) []uint {
	seen := make(map[uint]struct{}, len(items))
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func missingIDs(items []OrderItemRequest, products map[uint]models.Product) []uint {
	var missing []uint
	for _, id := range distinctProductIDs(items) {
		if _, ok := products[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func missingProductsErr(ids []uint) error {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = fmt.Sprint(id)
	}
	return apperr.Validation("products with IDs [%s] not found", strings.Join(strs, ", ")).
		WithDetails(strs...)
}

// priceOrder snapshots each product's current price onto its line.
func priceOrder(userID uint, req CreateOrderRequest, products map[uint]models.Product, now time.Time) *models.Order {
	order := &models.Order{
		UserID:        userID,
		CreatedAt:     now.UTC(),
		FullName:      req.FullName,
		Address:       req.Address,
		ContactNumber: req.ContactNumber,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   decimal.Zero,
		Items:         make([]models.OrderItem, 0, len(req.OrderItems)),
	}
	for _, line := range req.OrderItems {
		item := models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: products[line.ProductID].Price,
		}
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}
	return order
}

func project(o models.Order, products map[uint]models.Product) OrderDTO {
	dto := OrderDTO{
		OrderID:       o.ID,
		OrderDate:     o.CreatedAt.UTC(),
		TotalAmount:   o.TotalAmount,
		FullName:      o.FullName,
		Address:       o.Address,
		ContactNumber: o.ContactNumber,
		PaymentMethod: o.PaymentMethod,
		OrderItems:    make([]OrderItemDTO, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		name := unknownProduct
		if p, ok := products[it.ProductID]; ok {
			name = p.Name
		}
		dto.OrderItems = append(dto.OrderItems, OrderItemDTO{
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal(),
		})
	}
	return dto
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, keeping only the date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		ts, err2 := time.Parse(time.RFC3339, s)
		if err2 != nil {
			return nil, err
		}
		t = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	return &t, nil
}
