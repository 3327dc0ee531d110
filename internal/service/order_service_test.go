package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/auth"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/internal/store/storetest"
	"github.com/judyrop/tequilas-restaurant/models"
)

type OrderServiceSuite struct {
	suite.Suite
	db    *gorm.DB
	store *store.Store
	svc   *OrderService
	ctx   context.Context

	alice, bob, admin *auth.Claims
	pizza, cola       *models.Product
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.db = storetest.Open(s.T())
	s.store = store.New(s.db)
	s.svc = NewOrderService(s.store, zerolog.Nop())
	s.ctx = context.Background()

	s.alice = auth.ClaimsForUser(storetest.CreateUser(s.T(), s.db, "alice"))
	s.bob = auth.ClaimsForUser(storetest.CreateUser(s.T(), s.db, "bob"))
	s.admin = auth.ClaimsForUser(storetest.CreateUser(s.T(), s.db, "boss", models.RoleAdmin))

	cat := storetest.CreateCategory(s.T(), s.db, "Veg")
	s.pizza = storetest.CreateProduct(s.T(), s.db, cat.ID, "Pizza", "9.99")
	storetest.CreateProduct(s.T(), s.db, cat.ID, "Burger", "11.99")
	s.cola = storetest.CreateProduct(s.T(), s.db, cat.ID, "Cola", "1.99")
}

func (s *OrderServiceSuite) request(items ...OrderItemRequest) CreateOrderRequest {
	return CreateOrderRequest{
		FullName:      "A B",
		Address:       "1 St",
		ContactNumber: "555",
		PaymentMethod: "card",
		OrderItems:    items,
	}
}

func (s *OrderServiceSuite) place(actor *auth.Claims, at time.Time, items ...OrderItemRequest) *OrderDTO {
	s.svc.now = func() time.Time { return at }
	order, err := s.svc.CreateOrder(s.ctx, actor, s.request(items...))
	s.Require().NoError(err)
	return order
}

func (s *OrderServiceSuite) countOrders() (orders, items int64) {
	s.Require().NoError(s.db.Model(&models.Order{}).Count(&orders).Error)
	s.Require().NoError(s.db.Model(&models.OrderItem{}).Count(&items).Error)
	return orders, items
}

func (s *OrderServiceSuite) TestCreateOrderPricesFromCatalog() {
	order, err := s.svc.CreateOrder(s.ctx, s.alice, s.request(
		OrderItemRequest{ProductID: s.pizza.ID, Quantity: 2},
		OrderItemRequest{ProductID: s.cola.ID, Quantity: 1},
	))
	s.Require().NoError(err)

	s.Equal("21.97", order.TotalAmount.StringFixed(2))
	s.Require().Len(order.OrderItems, 2)
	s.Equal("Pizza", order.OrderItems[0].ProductName)
	s.Equal("9.99", order.OrderItems[0].UnitPrice.StringFixed(2))
	s.Equal("19.98", order.OrderItems[0].LineTotal.StringFixed(2))
	s.Equal("1.99", order.OrderItems[1].UnitPrice.StringFixed(2))
	s.Equal("card", order.PaymentMethod)

	stored, err := s.store.Orders.Get(s.ctx, order.OrderID)
	s.Require().NoError(err)
	s.Equal(s.alice.UserID, stored.UserID)
	s.True(decimal.RequireFromString("21.97").Equal(stored.TotalAmount))
}

func (s *OrderServiceSuite) TestCreateOrderRejectsMissingProducts() {
	_, err := s.svc.CreateOrder(s.ctx, s.alice, s.request(
		OrderItemRequest{ProductID: s.pizza.ID, Quantity: 1},
		OrderItemRequest{ProductID: 99, Quantity: 1},
		OrderItemRequest{ProductID: 98, Quantity: 3},
	))
	s.Require().True(apperr.Is(err, apperr.KindValidation))
	var ae *apperr.Error
	s.Require().ErrorAs(err, &ae)
	s.Equal([]string{"98", "99"}, ae.Details)
	s.Contains(ae.Message, "98, 99")

	orders, items := s.countOrders()
	s.Zero(orders)
	s.Zero(items)
}

func (s *OrderServiceSuite) TestCreateOrderValidation() {
	req := s.request(OrderItemRequest{ProductID: s.pizza.ID, Quantity: 0})
	req.FullName = "   "
	_, err := s.svc.CreateOrder(s.ctx, nil, req)

	var ae *apperr.Error
	s.Require().ErrorAs(err, &ae)
	s.Equal(apperr.KindValidation, ae.Kind)
	s.Contains(ae.Fields, "fullName")
	s.Contains(ae.Fields, "orderItems[0].quantity")

	_, err = s.svc.CreateOrder(s.ctx, s.alice, s.request())
	s.Require().ErrorAs(err, &ae)
	s.Contains(ae.Fields, "orderItems")

	_, err = s.svc.CreateOrder(s.ctx, nil, s.request(OrderItemRequest{ProductID: s.pizza.ID, Quantity: 1}))
	s.True(apperr.Is(err, apperr.KindUnauthenticated))
}

func (s *OrderServiceSuite) TestCreateOrderBoundsQuantityAndTotal() {
	_, err := s.svc.CreateOrder(s.ctx, s.alice, s.request(OrderItemRequest{ProductID: s.pizza.ID, Quantity: 4000000000000}))
	var ae *apperr.Error
	s.Require().ErrorAs(err, &ae)
	s.Equal(apperr.KindValidation, ae.Kind)
	s.Equal("must be at most 1000", ae.Fields["orderItems[0].quantity"])

	order, err := s.svc.CreateOrder(s.ctx, s.alice, s.request(OrderItemRequest{ProductID: s.pizza.ID, Quantity: 1000}))
	s.Require().NoError(err)
	s.Equal("9990.00", order.TotalAmount.StringFixed(2))

	cat := storetest.CreateCategory(s.T(), s.db, "Banquets")
	feast := storetest.CreateProduct(s.T(), s.db, cat.ID, "Feast", "99999999.99")
	_, err = s.svc.CreateOrder(s.ctx, s.alice, s.request(OrderItemRequest{ProductID: feast.ID, Quantity: 1000}))
	s.Require().ErrorAs(err, &ae)
	s.Equal(apperr.KindValidation, ae.Kind)
	s.Contains(ae.Message, "exceeds the maximum")

	orders, _ := s.countOrders()
	s.Equal(int64(1), orders)
}

func (s *OrderServiceSuite) TestPriceChangeDoesNotAlterOrder() {
	order := s.place(s.alice, time.Now(), OrderItemRequest{ProductID: s.pizza.ID, Quantity: 2})

	s.pizza.Price = decimal.RequireFromString("14.50")
	s.Require().NoError(s.store.Products.Save(s.ctx, s.pizza))

	again, err := s.svc.GetOrderByID(s.ctx, s.alice, order.OrderID)
	s.Require().NoError(err)
	s.Equal("19.98", again.TotalAmount.StringFixed(2))
	s.Equal("9.99", again.OrderItems[0].UnitPrice.StringFixed(2))
}

func (s *OrderServiceSuite) TestDeletedProductReadsAsUnknown() {
	order := s.place(s.alice, time.Now(), OrderItemRequest{ProductID: s.cola.ID, Quantity: 1})
	s.Require().NoError(s.store.Products.Delete(s.ctx, s.cola.ID))

	again, err := s.svc.GetOrderByID(s.ctx, s.alice, order.OrderID)
	s.Require().NoError(err)
	s.Equal("Unknown Product", again.OrderItems[0].ProductName)
	s.Equal("1.99", again.TotalAmount.StringFixed(2))
}

func (s *OrderServiceSuite) TestGetMyOrders() {
	none, err := s.svc.GetMyOrders(s.ctx, s.bob)
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)

	first := s.place(s.alice, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), OrderItemRequest{ProductID: s.pizza.ID, Quantity: 1})
	second := s.place(s.alice, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), OrderItemRequest{ProductID: s.cola.ID, Quantity: 1})
	s.place(s.bob, time.Now(), OrderItemRequest{ProductID: s.cola.ID, Quantity: 1})

	mine, err := s.svc.GetMyOrders(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(second.OrderID, mine[0].OrderID)
	s.Equal(first.OrderID, mine[1].OrderID)
	s.Equal("Cola", mine[0].OrderItems[0].ProductName)
}

func (s *OrderServiceSuite) TestGetAllOrdersDateRange() {
	line := OrderItemRequest{ProductID: s.pizza.ID, Quantity: 1}
	s.place(s.alice, time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC), line)
	s.place(s.alice, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), line)
	s.place(s.bob, time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC), line, OrderItemRequest{ProductID: s.cola.ID, Quantity: 2})
	s.place(s.bob, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), line)

	january, err := s.svc.GetAllOrders(s.ctx, s.admin, "2024-01-01", "2024-01-31")
	s.Require().NoError(err)
	s.Equal(2, january.TotalOrders)
	s.Len(january.Orders, 2)
	s.Equal("23.96", january.TotalRevenue.StringFixed(2))
	s.Equal(DateRange{From: "2024-01-01", To: "2024-01-31"}, january.DateRange)

	all, err := s.svc.GetAllOrders(s.ctx, s.admin, "", "")
	s.Require().NoError(err)
	s.Equal(4, all.TotalOrders)
	s.Equal(DateRange{From: "All time", To: "All time"}, all.DateRange)

	since, err := s.svc.GetAllOrders(s.ctx, s.admin, "2024-01-31T08:00:00Z", "")
	s.Require().NoError(err)
	s.Equal(2, since.TotalOrders)
	s.Equal("All time", since.DateRange.To)
}

func (s *OrderServiceSuite) TestGetAllOrdersRejects() {
	_, err := s.svc.GetAllOrders(s.ctx, s.alice, "", "")
	s.True(apperr.Is(err, apperr.KindForbidden))

	_, err = s.svc.GetAllOrders(s.ctx, nil, "", "")
	s.True(apperr.Is(err, apperr.KindUnauthenticated))

	_, err = s.svc.GetAllOrders(s.ctx, s.admin, "2024-02-01", "2024-01-01")
	s.True(apperr.Is(err, apperr.KindValidation))

	_, err = s.svc.GetAllOrders(s.ctx, s.admin, "yesterday", "")
	var ae *apperr.Error
	s.Require().ErrorAs(err, &ae)
	s.Contains(ae.Fields, "fromDate")
}

func (s *OrderServiceSuite) TestGetOrderByIDHidesOtherUsersOrders() {
	order := s.place(s.alice, time.Now(), OrderItemRequest{ProductID: s.pizza.ID, Quantity: 1})

	_, err := s.svc.GetOrderByID(s.ctx, s.alice, order.OrderID)
	s.NoError(err)

	got, err := s.svc.GetOrderByID(s.ctx, s.bob, order.OrderID)
	s.Nil(got)
	s.True(apperr.Is(err, apperr.KindNotFound))

	_, err = s.svc.GetOrderByID(s.ctx, s.admin, order.OrderID)
	s.NoError(err)

	_, err = s.svc.GetOrderByID(s.ctx, s.admin, 4242)
	s.True(apperr.Is(err, apperr.KindNotFound))
}
