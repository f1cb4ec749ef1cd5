package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atelia_back_end/internal/database"

	"github.com/gin-gonic/gin"
)

const (
	// Limites par endpoint
	ReturnCreateMaxAttempts = 5
	APIMaxRequests          = 100 // Par minute pour les endpoints généraux

	// Durées de cooldown
	ReturnCreateCooldown = 10 * time.Minute
	APICooldown          = 1 * time.Minute
)

// ReturnCreateRateLimit limite les créations de demandes de retour par
// appelant (user_id, sinon IP pour les invités)
func ReturnCreateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if database.Redis == nil {
			c.Next()
			return
		}

		caller := c.GetString("user_id")
		if caller == "" {
			caller = c.ClientIP()
		}

		ctx := context.Background()
		key := "return_create_attempts:" + caller

		attempts, _ := database.Redis.Get(ctx, key).Int()
		if attempts >= ReturnCreateMaxAttempts {
			ttl := database.Redis.TTL(ctx, key).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de demandes de retour. Réessayez dans %d minutes", int(ttl.Minutes())+1),
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		pipe := database.Redis.TxPipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ReturnCreateCooldown)
		pipe.Exec(ctx)

		c.Next()
	}
}

// APIRateLimit limite le débit global par IP (poller client compris)
func APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if database.Redis == nil {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "api_requests:" + c.ClientIP()

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= APIMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Trop de requêtes, ralentissez",
			})
			c.Abort()
			return
		}

		pipe := database.Redis.TxPipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, APICooldown)
		pipe.Exec(ctx)

		c.Next()
	}
}
