package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorInfo `json:"error,omitempty"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, envelope{
		Success: false,
		Error:   &errorInfo{Code: code, Message: message},
	})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func notFound(c *gin.Context, message string) {
	writeError(c, http.StatusNotFound, "NOT_FOUND", message)
}

func internalError(c *gin.Context, message string) {
	writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
