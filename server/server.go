package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/handler"
	"github.com/TIANLI0/CutoutKit/middleware"
	"github.com/gin-gonic/gin"
)

// NewRouter 注册中间件和路由
func NewRouter(cfg *config.Config, h *handler.ImageHandler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// 超出部分写入临时文件，大小限制在 handler 里按文件校验
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.GET("/version", h.Version)

	r.POST("/process-image", h.ProcessImage)
	r.POST("/remove-background", h.RemoveBackground)
	r.POST("/remove-bg", h.RemoveBackground)

	return r
}

type Server struct {
	httpServer *http.Server
}

func New(cfg *config.ServerConfig, h http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:           cfg.Port,
			Handler:        h,
			MaxHeaderBytes: 1 << 20,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
		},
	}
}

// Run 阻塞直到服务关闭，正常关闭返回 nil
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
