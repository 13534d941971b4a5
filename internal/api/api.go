package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"marketplace-service/internal/entity"
	"marketplace-service/internal/service"
)

type Handler struct {
	carts  *service.CartService
	orders *service.OrderService
}

// NewHandler creates a new instance of Handler
func NewHandler(carts *service.CartService, orders *service.OrderService) *Handler {
	return &Handler{carts: carts, orders: orders}
}

// Register mounts every route. auth guards everything except /health.
func (h *Handler) Register(e *echo.Echo, auth echo.MiddlewareFunc) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "marketplace-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	g := e.Group("", auth, requirePrincipal)

	g.GET("/cart", h.GetCart)
	g.POST("/cart/items", h.AddCartItem)
	g.PUT("/cart/items/:product_id", h.UpdateCartItem)
	g.DELETE("/cart/items/:product_id", h.RemoveCartItem)
	g.DELETE("/cart", h.ClearCart)

	g.POST("/checkout", h.Checkout)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	g.GET("/master-orders/:id", h.GetMasterOrder)
	g.POST("/orders/:id/payment", h.SubmitPayment)
	g.GET("/orders/:id/delivery", h.DeliveryStatus)
	g.POST("/orders/:id/review", h.CreateReview)

	g.GET("/seller/orders", h.ListSellerOrders)
	g.GET("/seller/orders/:id", h.GetSellerOrder)
	g.POST("/seller/orders/:id/status", h.UpdateStatus)
	g.POST("/seller/orders/:id/delivery", h.StartDelivery)
	g.GET("/seller/dashboard", h.Dashboard)
}

func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

type cartResponse struct {
	Token string                 `json:"token"`
	Items []service.CartItemView `json:"items"`
	Count int                    `json:"count"`
	Total decimal.Decimal        `json:"total"`
}

func (h *Handler) cartJSON(c echo.Context, cart *entity.Cart) error {
	resp := cartResponse{Token: cart.Token, Items: []service.CartItemView{}, Count: cart.Count(), Total: cart.TotalPrice()}
	for item := range h.carts.Items(c.Request().Context(), cart) {
		resp.Items = append(resp.Items, item)
	}
	return c.JSON(200, resp)
}

// GetCart --> GET /cart
func (h *Handler) GetCart(c echo.Context) error {
	p, _ := principalFrom(c)
	cart, err := h.carts.Get(c.Request().Context(), p.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return h.cartJSON(c, cart)
}

// AddCartItem --> POST /cart/items
func (h *Handler) AddCartItem(c echo.Context) error {
	p, _ := principalFrom(c)
	req := struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
		Override  bool  `json:"override"`
	}{Quantity: 1}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	cart, err := h.carts.Add(c.Request().Context(), p.SessionID, req.ProductID, req.Quantity, req.Override)
	if err != nil {
		return respondError(c, err)
	}
	return h.cartJSON(c, cart)
}

// UpdateCartItem --> PUT /cart/items/:product_id
func (h *Handler) UpdateCartItem(c echo.Context) error {
	p, _ := principalFrom(c)
	productID, ok := paramID(c, "product_id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	req := struct {
		Quantity int `json:"quantity"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	cart, err := h.carts.Update(c.Request().Context(), p.SessionID, productID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return h.cartJSON(c, cart)
}

// RemoveCartItem --> DELETE /cart/items/:product_id
func (h *Handler) RemoveCartItem(c echo.Context) error {
	p, _ := principalFrom(c)
	productID, ok := paramID(c, "product_id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	cart, err := h.carts.Remove(c.Request().Context(), p.SessionID, productID)
	if err != nil {
		return respondError(c, err)
	}
	return h.cartJSON(c, cart)
}

// ClearCart --> DELETE /cart
func (h *Handler) ClearCart(c echo.Context) error {
	p, _ := principalFrom(c)
	if err := h.carts.Clear(c.Request().Context(), p.SessionID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(204)
}

// Checkout --> POST /checkout
func (h *Handler) Checkout(c echo.Context) error {
	p, _ := principalFrom(c)
	sel := entity.DeliverySelection{}
	if err := c.Bind(&sel); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	res, err := h.orders.Checkout(c.Request().Context(), p, sel)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(201, res)
}

// ListOrders --> GET /orders
func (h *Handler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	p, _ := principalFrom(c)

	masters, err := h.orders.ListMasterOrders(ctx, p)
	if err != nil {
		return respondError(c, err)
	}
	subs, err := h.orders.ListClientOrders(ctx, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, map[string]interface{}{
		"master_orders": masters,
		"orders":        subs,
	})
}

// GetOrder --> GET /orders/:id
func (h *Handler) GetOrder(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	view, err := h.orders.GetClientOrder(c.Request().Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, view)
}

// GetMasterOrder --> GET /master-orders/:id
func (h *Handler) GetMasterOrder(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	m, err := h.orders.GetMasterOrder(c.Request().Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, m)
}

// SubmitPayment --> POST /orders/:id/payment
func (h *Handler) SubmitPayment(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	req := entity.PaymentRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	res, err := h.orders.SubmitPayment(c.Request().Context(), p, id, req)
	if err != nil {
		return respondError(c, err)
	}
	if res.AwaitingVerification {
		return c.JSON(202, res)
	}
	return c.JSON(201, res)
}

// DeliveryStatus --> GET /orders/:id/delivery
func (h *Handler) DeliveryStatus(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	view, err := h.orders.DeliveryStatus(c.Request().Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, view)
}

// CreateReview --> POST /orders/:id/review
func (h *Handler) CreateReview(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	req := struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	review, rating, err := h.orders.CreateReview(c.Request().Context(), p, id, req.Rating, req.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(201, map[string]interface{}{
		"review":        review,
		"seller_rating": rating,
	})
}

// ListSellerOrders --> GET /seller/orders?status=
func (h *Handler) ListSellerOrders(c echo.Context) error {
	p, _ := principalFrom(c)
	orders, err := h.orders.ListSellerOrders(c.Request().Context(), p, c.QueryParam("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, orders)
}

// GetSellerOrder --> GET /seller/orders/:id
func (h *Handler) GetSellerOrder(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	view, err := h.orders.GetSellerOrder(c.Request().Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, view)
}

// UpdateStatus --> POST /seller/orders/:id/status
func (h *Handler) UpdateStatus(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	req := struct {
		Status string `json:"status"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	order, err := h.orders.UpdateStatus(c.Request().Context(), p, id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, order)
}

// StartDelivery --> POST /seller/orders/:id/delivery
func (h *Handler) StartDelivery(c echo.Context) error {
	p, _ := principalFrom(c)
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}
	req := service.StartDeliveryRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	d, err := h.orders.StartDelivery(c.Request().Context(), p, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(201, d)
}

// Dashboard --> GET /seller/dashboard
func (h *Handler) Dashboard(c echo.Context) error {
	p, _ := principalFrom(c)
	board, err := h.orders.Dashboard(c.Request().Context(), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(200, board)
}
