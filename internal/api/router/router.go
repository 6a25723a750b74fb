package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deptdesk/config"
	"deptdesk/internal/api/handler"
	"deptdesk/internal/api/middleware"
	"deptdesk/internal/model"
	"deptdesk/pkg/jwt"
	"deptdesk/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查与指标 ──
	r.GET("/health", healthHandler(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	staff := []string{model.RoleLecturer, model.RoleAdmin}
	authLimit := middleware.RateLimit(rdb, cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/register", authLimit, h.Auth.Register)
			auth.POST("/refresh", authLimit, h.Auth.RefreshToken)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 教师资料
			authorized.GET("/staff/me", h.Profile.GetMyProfile)
			authorized.PATCH("/staff/me", middleware.RoleAuth(staff...), h.Profile.UpdateMyProfile)

			// 课程模块（归属由 Service 校验）
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Course.ListCourses)
				courses.GET("/:id", h.Course.GetCourse)
				courses.POST("", middleware.RoleAuth(staff...), h.Course.CreateCourse)
				courses.PUT("/:id", middleware.RoleAuth(staff...), h.Course.UpdateCourse)
				courses.DELETE("/:id", middleware.RoleAuth(staff...), h.Course.DeleteCourse)
			}

			// 礼堂模块
			halls := authorized.Group("/halls")
			{
				halls.GET("", h.Booking.ListHalls)
				halls.GET("/bookings", h.Booking.ListBookings)
				halls.GET("/bookings/export.xlsx", h.Booking.ExportXLSX)
				halls.GET("/bookings/export.ics", h.Booking.ExportICS)
				halls.GET("/bookings/:id", h.Booking.GetBooking)
				halls.POST("/bookings/check", middleware.RoleAuth(staff...), h.Booking.CheckBooking)
				halls.POST("/bookings", middleware.RoleAuth(staff...), h.Booking.CreateBooking)
				halls.PUT("/bookings/:id", middleware.RoleAuth(staff...), h.Booking.UpdateBooking)
				halls.DELETE("/bookings/:id", middleware.RoleAuth(staff...), h.Booking.DeleteBooking)
			}

			// 院系活动模块
			events := authorized.Group("/events")
			{
				events.GET("", h.Event.ListEvents)
				events.GET("/:id", h.Event.GetEvent)
				events.POST("", middleware.RoleAuth(staff...), h.Event.CreateEvent)
				events.PUT("/:id", middleware.RoleAuth(staff...), h.Event.UpdateEvent)
				events.DELETE("/:id", middleware.RoleAuth(staff...), h.Event.DeleteEvent)
			}
		}
	}

	return r
}

// healthHandler 数据库 Ping 通时返回 ok
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
