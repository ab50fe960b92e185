package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the API response envelope. It mirrors the upstream backend's
// {data, message} shape so the storefront consumes one format end to end.
type Body struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Body{Data: data, Message: message})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, Body{Data: data, Message: message})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with a user-facing message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Body{Message: message})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Body{Message: message})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Body{Message: message})
}

// NotFound sends 404.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Body{Message: message})
}

// Conflict sends 409.
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Body{Message: message})
}

// BadGateway sends 502, used when the upstream backend is unreachable.
func BadGateway(c *gin.Context, message string) {
	c.JSON(http.StatusBadGateway, Body{Message: message})
}

// Internal sends 500.
func Internal(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Body{Message: message})
}
