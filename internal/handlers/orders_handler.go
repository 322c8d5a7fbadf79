package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estatecart/commerce/internal/auth"
	"github.com/estatecart/commerce/internal/orders"
	"go.uber.org/zap"
)

// RegisterOrderRoutes registers the read-only admin order views.
func RegisterOrderRoutes(r *gin.Engine, cfg HandlerConfig) {
	store := orders.NewStore(cfg.DynamoDBClient, cfg.Config.OrdersTable)
	secret := cfg.Config.SessionSecret

	grp := r.Group("/api/admin/orders")

	grp.GET("", auth.RequireCapability(secret, auth.ActionOrdersRead), func(c *gin.Context) {
		list, total, err := store.List(c.Request.Context(), 50)
		if err != nil {
			cfg.Logger.Error("list orders failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list, "total": total})
	})

	grp.GET("/:id", auth.RequireCapability(secret, auth.ActionOrdersRead), func(c *gin.Context) {
		id := c.Param("id")
		order, err := store.Get(c.Request.Context(), id)
		if err != nil {
			cfg.Logger.Error("get order failed", zap.String("order_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, order)
	})
}
