package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/estatecart/commerce/internal/auth"
	"github.com/estatecart/commerce/internal/catalog"
	"github.com/estatecart/commerce/internal/flashsales"
	"github.com/estatecart/commerce/internal/validation"
	"go.uber.org/zap"
)

// RegisterFlashSaleRoutes registers the admin flash-sale resource API.
func RegisterFlashSaleRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	saleStore := flashsales.NewStore(cfg.DynamoDBClient, cfg.Config.FlashSalesTable)
	productStore := catalog.NewStore(cfg.DynamoDBClient, cfg.Config.ProductsTable)
	secret := cfg.Config.SessionSecret

	grp := r.Group("/api/admin/flash-sales")

	grp.GET("", auth.RequireCapability(secret, auth.ActionFlashSalesRead), func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"
		sales, err := saleStore.List(c.Request.Context(), activeOnly)
		if err != nil {
			cfg.Logger.Error("list flash sales failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"flash_sales": sales})
	})

	grp.POST("", auth.RequireCapability(secret, auth.ActionFlashSalesWrite), func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateFlashSaleRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		product, err := productStore.Get(ctx, req.ProductID)
		if err != nil {
			cfg.Logger.Error("product lookup failed", zap.String("product_id", req.ProductID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		if product == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		sale := flashsales.FlashSale{
			ID:              uuid.NewString(),
			Name:            req.Name,
			ProductID:       req.ProductID,
			DiscountPercent: req.DiscountPercent,
			BasePrice:       product.Price,
			FlashPrice:      flashsales.ComputeFlashPrice(product.Price, req.DiscountPercent),
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			IsActive:        isActive,
		}

		if err := saleStore.Put(ctx, sale); err != nil {
			cfg.Logger.Error("create flash sale failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(http.StatusCreated, sale)
	})

	grp.PATCH("/:id", auth.RequireCapability(secret, auth.ActionFlashSalesWrite), func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")

		sale, err := saleStore.Get(ctx, id)
		if err != nil {
			cfg.Logger.Error("flash sale lookup failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		if sale == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "flash_sale_not_found"})
			return
		}

		var req validation.UpdateFlashSaleRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		if req.Name != nil {
			sale.Name = *req.Name
		}
		if req.StartTime != nil {
			sale.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			sale.EndTime = *req.EndTime
		}
		if req.IsActive != nil {
			sale.IsActive = *req.IsActive
		}
		if !sale.EndTime.After(sale.StartTime) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "fields": map[string]string{"endTime": "must be after startTime"}})
			return
		}

		if req.ProductID != nil && *req.ProductID != sale.ProductID {
			product, err := productStore.Get(ctx, *req.ProductID)
			if err != nil {
				cfg.Logger.Error("product lookup failed", zap.String("product_id", *req.ProductID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
				return
			}
			if product == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
				return
			}
			sale.ProductID = *req.ProductID
			sale.BasePrice = product.Price
		}
		if req.DiscountPercent != nil {
			sale.DiscountPercent = *req.DiscountPercent
		}
		// recompute from the (possibly new) base price; a discount change
		// always reprices the sale
		sale.FlashPrice = flashsales.ComputeFlashPrice(sale.BasePrice, sale.DiscountPercent)

		if err := saleStore.Put(ctx, *sale); err != nil {
			cfg.Logger.Error("update flash sale failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(http.StatusOK, sale)
	})

	grp.DELETE("/:id", auth.RequireCapability(secret, auth.ActionFlashSalesWrite), func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")

		sale, err := saleStore.Get(ctx, id)
		if err != nil {
			cfg.Logger.Error("flash sale lookup failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		if sale == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "flash_sale_not_found"})
			return
		}

		if err := saleStore.Delete(ctx, id); err != nil {
			cfg.Logger.Error("delete flash sale failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})
}
