package handler

import (
	"errors"
	"net/http"

	"roadassist/internal/middleware"
	"roadassist/internal/repository"
	"roadassist/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type PlaceOrderRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (h *OrderHandler) Place(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "productId and quantity are required")
		return
	}
	o, err := h.svc.Place(middleware.GetUserID(c), req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, repository.ErrInsufficientStock):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrProductNotFound):
			fail(c, http.StatusNotFound, "Product not found")
		default:
			internalError(c, "order", err)
		}
		return
	}
	respond(c, http.StatusCreated, "Order placed successfully", gin.H{"order": o})
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.svc.ListForUser(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "order", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"orders": orders})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.svc.Get(c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			fail(c, http.StatusNotFound, "Order not found")
			return
		}
		internalError(c, "order", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"order": o})
}
