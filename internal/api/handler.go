// Package api is the HTTP surface: thin gin handlers over the services, the
// role guard, and the observability endpoints.
package api

import (
	"net/http"
	"strconv"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/notify"
	"renthub/internal/query"
	"renthub/internal/service"
	"renthub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	users      *service.UserService
	categories *service.CategoryService
	listings   *service.ListingService
	orders     *service.OrderService
	reviews    *service.ReviewService
	stats      *service.StatsService
	hub        *notify.Hub
	logger     *zap.Logger
}

func NewHandler(
	users *service.UserService,
	categories *service.CategoryService,
	listings *service.ListingService,
	orders *service.OrderService,
	reviews *service.ReviewService,
	stats *service.StatsService,
	hub *notify.Hub,
) *Handler {
	return &Handler{
		users:      users,
		categories: categories,
		listings:   listings,
		orders:     orders,
		reviews:    reviews,
		stats:      stats,
		hub:        hub,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes registers all routes on the router.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(metricsMiddleware())

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", h.hub.HandleWS)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", h.createUser)
		v1.GET("/users/:userId", Identified(), h.getUser)
		v1.PATCH("/users/:userId/status", RequireRole(Simple(models.RoleAdmin)), h.setUserStatus)
		v1.GET("/users/:userId/orders", Identified(), h.listUserOrders)

		v1.GET("/categories", h.listCategories)
		v1.GET("/categories/:id", h.getCategory)
		v1.POST("/categories", RequireRole(Simple(models.RoleAdmin)), h.createCategory)
		v1.PUT("/categories/:id", RequireRole(Simple(models.RoleAdmin)), h.updateCategory)
		v1.DELETE("/categories/:id", RequireRole(Simple(models.RoleAdmin)), h.deleteCategory)

		v1.GET("/listings", h.listListings)
		v1.GET("/listings/:listingId", h.getListing)
		v1.GET("/listings/:listingId/reviews", h.listListingReviews)
		v1.GET("/sellers/:sellerId/listings", Identified(), h.listSellerListings)
		seller := RequireRole(Simple(models.RoleSeller), Simple(models.RoleAdmin))
		v1.POST("/listings", seller, h.createListing)
		v1.PUT("/listings/:listingId", seller, h.updateListing)
		v1.PATCH("/listings/:listingId/availability", seller, h.setListingAvailability)
		v1.PATCH("/listings/:listingId/discount", seller, h.updateListingDiscount)
		v1.DELETE("/listings/:listingId", seller, h.deleteListing)

		v1.POST("/orders", RequireRole(Simple(models.RoleBuyer)), h.createOrder)
		v1.GET("/orders", RequireRole(Simple(models.RoleAdmin)), h.listOrders)
		v1.GET("/orders/:orderId", Identified(), h.getOrder)
		v1.PATCH("/orders/:orderId/status",
			RequireRole(Simple(models.RoleAdmin), Simple(models.RoleSeller)), h.changeOrderStatus)
		v1.DELETE("/orders/:orderId", Identified(), h.deleteOrder)
		v1.POST("/orders/:orderId/payment", RequireRole(Simple(models.RoleBuyer)), h.createPayment)
		v1.GET("/payment/verify", h.verifyPayment)

		v1.GET("/reviews", h.listReviews)
		v1.POST("/reviews", RequireRole(Simple(models.RoleBuyer)), h.createReview)
		v1.PUT("/reviews/:id", Identified(), h.updateReview)
		v1.DELETE("/reviews/:id", Identified(), h.deleteReview)

		v1.GET("/stats", RequireRole(Simple(models.RoleAdmin)), h.getStats)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

func respondData(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}

func respondList(c *gin.Context, message string, meta query.Meta, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "meta": meta, "data": data})
}

// Users

func (h *Handler) createUser(c *gin.Context) {
	var input service.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "user created", user)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "user retrieved", user)
}

func (h *Handler) setUserStatus(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	if err := h.users.SetUserStatus(c.Request.Context(), c.Param("userId"), input.Status); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "user status updated", nil)
}

// Categories

func (h *Handler) createCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	cat, err := h.categories.CreateCategory(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "category created", cat)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, meta, err := h.categories.ListCategories(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "categories retrieved", meta, categories)
}

func (h *Handler) getCategory(c *gin.Context) {
	cat, err := h.categories.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "category retrieved", cat)
}

func (h *Handler) updateCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	cat, err := h.categories.UpdateCategory(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "category updated", cat)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.categories.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "category deleted", nil)
}

// Listings

func (h *Handler) createListing(c *gin.Context) {
	var input service.CreateListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	listing, err := h.listings.CreateListing(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "listing created", listing)
}

func (h *Handler) listListings(c *gin.Context) {
	listings, meta, err := h.listings.ListListings(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "listings retrieved", meta, listings)
}

func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.listings.GetListing(c.Request.Context(), c.Param("listingId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "listing retrieved", listing)
}

func (h *Handler) listSellerListings(c *gin.Context) {
	listings, meta, err := h.listings.ListSellerListings(
		c.Request.Context(), c.Param("sellerId"), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "listings retrieved", meta, listings)
}

func (h *Handler) updateListing(c *gin.Context) {
	var input service.UpdateListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	listing, err := h.listings.UpdateListing(c.Request.Context(), c.Param("listingId"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "listing updated", listing)
}

func (h *Handler) setListingAvailability(c *gin.Context) {
	var input struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	if err := h.listings.SetAvailability(c.Request.Context(), c.Param("listingId"), *input.Available); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "listing availability updated", nil)
}

func (h *Handler) updateListingDiscount(c *gin.Context) {
	var input service.UpdateDiscountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	if err := h.listings.UpdateDiscount(c.Request.Context(), c.Param("listingId"), input); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "listing discount updated", nil)
}

func (h *Handler) deleteListing(c *gin.Context) {
	if err := h.listings.DeleteListing(c.Request.Context(), c.Param("listingId")); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "listing deleted", nil)
}

// Orders

func (h *Handler) createOrder(c *gin.Context) {
	var input service.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	// The caller places their own order.
	input.BuyerID = c.GetString(ctxUserID)
	order, err := h.orders.CreateOrder(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "order created", order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, meta, err := h.orders.ListOrders(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "orders retrieved", meta, orders)
}

func (h *Handler) listUserOrders(c *gin.Context) {
	orders, meta, err := h.orders.ListUserOrders(
		c.Request.Context(), c.Param("userId"), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "orders retrieved", meta, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "order retrieved", order)
}

func (h *Handler) changeOrderStatus(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	order, err := h.orders.ChangeStatus(c.Request.Context(), c.Param("orderId"), input.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "order status updated", order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("orderId")); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "order deleted", nil)
}

func (h *Handler) createPayment(c *gin.Context) {
	result, err := h.orders.CreatePayment(c.Request.Context(), c.Param("orderId"), c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "payment initiated", result)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	paymentID := c.Query("paymentId")
	if paymentID == "" {
		h.respondError(c, apperr.New(apperr.KindValidation, "paymentId is required"))
		return
	}
	order, err := h.orders.VerifyPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	message := "payment verified"
	if order.Status != models.OrderStatusPaid {
		message = "payment not completed"
	}
	respondData(c, http.StatusOK, message, order)
}

// Reviews

func (h *Handler) createReview(c *gin.Context) {
	var input service.CreateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	input.UserID = c.GetString(ctxUserID)
	review, err := h.reviews.CreateReview(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "review created", review)
}

func (h *Handler) listReviews(c *gin.Context) {
	reviews, meta, err := h.reviews.ListReviews(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "reviews retrieved", meta, reviews)
}

func (h *Handler) listListingReviews(c *gin.Context) {
	reviews, err := h.reviews.GetListingReviews(c.Request.Context(), c.Param("listingId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "reviews retrieved", reviews)
}

func (h *Handler) updateReview(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.New(apperr.KindValidation, "invalid review id"))
		return
	}
	var input service.UpdateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	review, err := h.reviews.UpdateReview(c.Request.Context(), id, c.GetString(ctxUserID), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "review updated", review)
}

func (h *Handler) deleteReview(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.New(apperr.KindValidation, "invalid review id"))
		return
	}
	if err := h.reviews.DeleteReview(c.Request.Context(), id, c.GetString(ctxUserID)); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "review deleted", nil)
}

// Stats

func (h *Handler) getStats(c *gin.Context) {
	overview, err := h.stats.GetOverview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "statistics retrieved", overview)
}
