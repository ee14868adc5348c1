package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes v as the 200 response body.
func OK(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

// Err writes {"error": msg} with the given status code.
func Err(c *gin.Context, code int, msg any) {
	c.JSON(code, gin.H{"error": msg})
}
