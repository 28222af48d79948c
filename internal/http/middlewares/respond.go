package middlewares

import "github.com/gin-gonic/gin"

// abort writes the shared error body. Handlers use handlers.RespondError for
// the same shape; middlewares cannot import handlers.
func abort(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	body := gin.H{
		"success": false,
		"code":    code,
		"message": message,
	}
	if id != "" {
		body["requestId"] = id
	}
	c.AbortWithStatusJSON(status, body)
}
