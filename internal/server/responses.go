package server

import "github.com/gin-gonic/gin"

// responseEnvelope is the JSON shape of every API response: statusCode and
// success always, plus either data or error/errorMessage.
type responseEnvelope struct {
	StatusCode   int    `json:"statusCode"`
	Success      bool   `json:"success"`
	Data         any    `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func respondData(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, responseEnvelope{
		StatusCode: statusCode,
		Success:    true,
		Data:       data,
	})
}

func respondError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, responseEnvelope{
		StatusCode:   statusCode,
		Success:      false,
		Error:        code,
		ErrorMessage: message,
	})
}

func abortError(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, responseEnvelope{
		StatusCode:   statusCode,
		Success:      false,
		Error:        code,
		ErrorMessage: message,
	})
}
