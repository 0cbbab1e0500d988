package v1

import (
	"log/slog"
	"net/http"

	"captions/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Jobs       JobUseCase
	Dispatch   DispatchUseCase
	Uploads    UploadUseCase
	Logger     *slog.Logger
	Middleware []gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(cfg.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jobs := NewJobHandler(cfg.Jobs, cfg.Dispatch)

	api := r.Group("/api", cfg.Middleware...)
	{
		api.POST("/jobs", jobs.CreateJob)
		api.GET("/jobs/:job_id", jobs.GetJob)
		api.PATCH("/jobs/:job_id", jobs.UpdateJob)
		api.POST("/jobs/:job_id/start", jobs.StartJob)

		if cfg.Uploads != nil {
			api.POST("/uploads/presign", NewUploadHandler(cfg.Uploads).Presign)
		}
	}

	return r
}
