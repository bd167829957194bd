package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// operatorIDKey is the key used to store the authenticated operator's ID.
const operatorIDKey = contextKey("operatorID")

// GetOperatorIDFromContext retrieves the authenticated operator ID set by AuthMiddleware.
func GetOperatorIDFromContext(c *gin.Context) (string, bool) {
	operatorID, ok := c.Request.Context().Value(operatorIDKey).(string)
	if !ok || operatorID == "" {
		return "", false
	}
	return operatorID, true
}

func withOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, operatorID)
}
