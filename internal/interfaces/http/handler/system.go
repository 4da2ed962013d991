package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

const (
	serviceDisplayName = "POS Bridge API"
	serviceVersion     = "1.0.0"
)

// SystemHandler serves the informational endpoints under /system.
type SystemHandler struct {
	BaseHandler
	startTime time.Time
}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startTime: time.Now()}
}

// SystemInfoResponse describes the running service.
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string   `json:"name" example:"POS Bridge API"`
	Version   string   `json:"version" example:"1.0.0"`
	GoVersion string   `json:"go_version" example:"go1.25.5"`
	Uptime    string   `json:"uptime" example:"1h30m45s"`
	Platforms []string `json:"platforms"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns service version, uptime, and the delivery platforms this build integrates with
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	codes := integration.AllPlatformCodes()
	platforms := make([]string, len(codes))
	for i, code := range codes {
		platforms[i] = code.String()
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      serviceDisplayName,
		Version:   serviceVersion,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Platforms: platforms,
	}))
}

// PingResponse is the liveness probe payload.
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Responds immediately; used by load balancer liveness checks
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}))
}
