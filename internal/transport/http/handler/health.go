package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db     *gorm.DB
	redis  *redisv9.Client
	mqConn *amqp.Connection
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(db *gorm.DB, redis *redisv9.Client, mqConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, mqConn: mqConn}
}

// Check reports liveness. Only the database decides healthy versus
// unhealthy; the optional redis and rabbitmq statuses are informational.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	c.Header("Cache-Control", "no-store")

	dbStatus, version := h.checkDatabase(ctx)

	deps := gin.H{}
	if h.redis != nil {
		deps["redis"] = h.checkRedis(ctx)
	}
	if h.mqConn != nil {
		deps["rabbitmq"] = h.checkRabbitMQ()
	}

	payload := gin.H{
		"status":       "healthy",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	}

	if !dbStatus.OK {
		payload["status"] = "unhealthy"
		payload["database"] = gin.H{"status": "error", "error": dbStatus.Message}
		c.JSON(http.StatusServiceUnavailable, payload)
		return
	}

	payload["database"] = gin.H{"status": "ok", "version": version}
	c.JSON(http.StatusOK, payload)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) (dependencyStatus, string) {
	sqlDB, err := h.db.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}, ""
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}, ""
	}

	version := "unknown"
	var reported string
	if err := h.db.WithContext(ctx).Raw("SELECT version()").Scan(&reported).Error; err == nil && reported != "" {
		version = reported
	}
	return dependencyStatus{OK: true}, version
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.mqConn == nil || h.mqConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
