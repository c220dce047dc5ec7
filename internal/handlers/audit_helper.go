package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/middleware"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/railtatkal/tatkal-backend/internal/utils"
)

// requestMeta collects the client details recorded on payment audit rows
func requestMeta(c *gin.Context) models.RequestMeta {
	userAgent := utils.GetUserAgent(c)
	return models.RequestMeta{
		IPAddress:     utils.GetRealIP(c),
		UserAgent:     userAgent,
		DeviceType:    utils.ParseUserAgent(userAgent).DeviceType,
		CorrelationID: middleware.GetRequestID(c),
	}
}

// currentUserID returns the authenticated user or writes a 401
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
		return uuid.Nil, false
	}
	return userCtx.UserID, true
}

// uuidParam parses a path parameter or writes a 400
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
