package handler

import (
	"errors"
	"net/http"
	"strconv"

	"roadassist/internal/domain"
	"roadassist/internal/middleware"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxProductImages = 4

type VendorHandler struct {
	products *repository.ProductRepository
	orders   *service.OrderService
	images   *ImageStore
}

func NewVendorHandler(products *repository.ProductRepository, orders *service.OrderService, images *ImageStore) *VendorHandler {
	return &VendorHandler{products: products, orders: orders, images: images}
}

type ProductRequest struct {
	Name     string  `form:"name" json:"name" binding:"required"`
	Category string  `form:"category" json:"category" binding:"required"`
	Price    float64 `form:"price" json:"price" binding:"required,gt=0"`
	Stock    int     `form:"stock" json:"stock" binding:"min=0"`
}

func (h *VendorHandler) AddProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "Missing details")
		return
	}
	urls, err := h.uploadImages(c)
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	p := &models.Product{
		VendorID: middleware.GetUserID(c),
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Stock:    req.Stock,
	}
	for _, u := range urls {
		p.Images = append(p.Images, models.ProductImage{ImageURL: u})
	}
	if err := h.products.Create(p); err != nil {
		h.discardAll(c, urls)
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusCreated, "Added New Product", gin.H{"product": p})
}

func (h *VendorHandler) ListProducts(c *gin.Context) {
	list, err := h.products.List(c.Query("category"))
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": list})
}

func (h *VendorHandler) ListOwnProducts(c *gin.Context) {
	list, err := h.products.ListByVendor(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": list})
}

func (h *VendorHandler) GetProduct(c *gin.Context) {
	p, err := h.products.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Product not found")
			return
		}
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"product": p})
}

func (h *VendorHandler) UpdateStock(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId" binding:"required"`
		Stock     *int   `json:"stock" binding:"required,min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "productId and a non-negative stock are required")
		return
	}
	err := h.products.UpdateFields(req.ProductID, middleware.GetUserID(c), map[string]interface{}{"stock": *req.Stock})
	if err != nil {
		h.productError(c, err)
		return
	}
	respond(c, http.StatusOK, "Stock updated", gin.H{"productId": req.ProductID, "stock": *req.Stock})
}

func (h *VendorHandler) LowStock(c *gin.Context) {
	threshold := domain.LowStockThreshold
	if raw := c.Query("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}
	list, err := h.products.LowStock(middleware.GetUserID(c), threshold)
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": list, "threshold": threshold})
}

// UpdateProduct applies the given fields. New images replace the old set.
func (h *VendorHandler) UpdateProduct(c *gin.Context) {
	var req struct {
		ProductID string   `form:"productId" json:"productId" binding:"required"`
		Name      string   `form:"name" json:"name"`
		Category  string   `form:"category" json:"category"`
		Price     *float64 `form:"price" json:"price"`
		Stock     *int     `form:"stock" json:"stock"`
	}
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "productId is required")
		return
	}
	vendorID := middleware.GetUserID(c)
	existing, err := h.products.GetByID(req.ProductID)
	if err != nil || existing.VendorID != vendorID {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	fields := map[string]interface{}{}
	if req.Name != "" {
		fields["name"] = req.Name
	}
	if req.Category != "" {
		fields["category"] = req.Category
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			fail(c, http.StatusBadRequest, "price must be positive")
			return
		}
		fields["price"] = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			fail(c, http.StatusBadRequest, "stock must not be negative")
			return
		}
		fields["stock"] = *req.Stock
	}
	if len(fields) > 0 {
		if err := h.products.UpdateFields(req.ProductID, vendorID, fields); err != nil {
			h.productError(c, err)
			return
		}
	}
	urls, err := h.uploadImages(c)
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	if len(urls) > 0 {
		if err := h.products.ReplaceImages(req.ProductID, urls); err != nil {
			h.discardAll(c, urls)
			internalError(c, "vendor", err)
			return
		}
		for _, img := range existing.Images {
			h.images.Discard(c.Request.Context(), img.ImageURL)
		}
	}
	p, err := h.products.GetByID(req.ProductID)
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusOK, "Product updated", gin.H{"product": p})
}

func (h *VendorHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("productId")
	vendorID := middleware.GetUserID(c)
	p, err := h.products.GetByID(id)
	if err != nil || p.VendorID != vendorID {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	if err := h.products.Delete(id, vendorID); err != nil {
		h.productError(c, err)
		return
	}
	for _, img := range p.Images {
		h.images.Discard(c.Request.Context(), img.ImageURL)
	}
	respond(c, http.StatusOK, "Product deleted", nil)
}

func (h *VendorHandler) ListOrders(c *gin.Context) {
	list, err := h.orders.ListForVendor(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "vendor", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"orders": list})
}

func (h *VendorHandler) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderId" binding:"required"`
		Status  string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "orderId and status are required")
		return
	}
	o, err := h.orders.UpdateStatus(middleware.GetUserID(c), req.OrderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrOrderNotFound):
			fail(c, http.StatusNotFound, "Order not found")
		default:
			internalError(c, "vendor", err)
		}
		return
	}
	respond(c, http.StatusOK, "Order status updated", gin.H{"order": o})
}

func (h *VendorHandler) productError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	internalError(c, "vendor", err)
}

// uploadImages stores up to maxProductImages files from the "imageUrl" field.
func (h *VendorHandler) uploadImages(c *gin.Context) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	files := form.File["imageUrl"]
	if len(files) > maxProductImages {
		files = files[:maxProductImages]
	}
	var urls []string
	for _, fh := range files {
		u, err := h.images.Upload(c.Request.Context(), fh, "products")
		if err != nil {
			h.discardAll(c, urls)
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (h *VendorHandler) discardAll(c *gin.Context, urls []string) {
	for _, u := range urls {
		h.images.Discard(c.Request.Context(), u)
	}
}
