package handler

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/middleware"
	"github.com/TIANLI0/CutoutKit/model"
	"github.com/TIANLI0/CutoutKit/service"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultBgColor    = "ffffff"
	defaultStartColor = "3b82f6"
	defaultEndColor   = "ec4899"
)

type ImageHandler struct {
	cfg   *config.Config
	svc   *service.ImageService
	build model.BuildInfo
}

func NewImageHandler(cfg *config.Config, svc *service.ImageService, build model.BuildInfo) *ImageHandler {
	return &ImageHandler{
		cfg:   cfg,
		svc:   svc,
		build: build,
	}
}

// ProcessImage 抠图并替换背景
func (h *ImageHandler) ProcessImage(c *gin.Context) {
	input, err := h.readUpload(c, "input_image", "Input image is required")
	if err != nil {
		h.writeError(c, err)
		return
	}

	bg, err := h.parseBackground(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out, err := h.svc.Compose(c.Request.Context(), input, bg)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", out)
}

// RemoveBackground 只抠图，返回透明 PNG
func (h *ImageHandler) RemoveBackground(c *gin.Context) {
	input, err := h.readUpload(c, "file", "File is required")
	if err != nil {
		h.writeError(c, err)
		return
	}

	out, err := h.svc.RemoveBackground(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", out)
}

func (h *ImageHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{
		Status:  "ok",
		Message: "CutoutKit background removal service",
	})
}

func (h *ImageHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{
		Status:  "ok",
		Version: h.build.Version,
		Remover: h.svc.RemoverName(),
	})
}

func (h *ImageHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// parseBackground 解析背景参数，所有校验在处理图片之前完成
func (h *ImageHandler) parseBackground(c *gin.Context) (service.Background, error) {
	opacity, err := parseOpacity(c.PostForm("bg_opacity"))
	if err != nil {
		return nil, err
	}

	var bg service.Background
	switch c.PostForm("bg_type") {
	case "image":
		data, err := h.readUpload(c, "bg_image", "Background image is required")
		if err != nil {
			return nil, err
		}
		bg = service.ImageBackground{Data: data, MaxPixels: h.cfg.Upload.MaxPixels}

	case "gradient":
		start, err := parseColor(c.DefaultPostForm("bg_start_color", defaultStartColor), "bg_start_color")
		if err != nil {
			return nil, err
		}
		end, err := parseColor(c.DefaultPostForm("bg_end_color", defaultEndColor), "bg_end_color")
		if err != nil {
			return nil, err
		}
		dir, err := service.ParseDirection(c.PostForm("gradient_direction"))
		if err != nil {
			return nil, service.Invalid("Invalid gradient_direction %q", c.PostForm("gradient_direction"))
		}
		bg = service.GradientBackground{Gradient: service.LinearGradient{Start: start, End: end, Direction: dir}}

	default:
		col, err := parseColor(c.DefaultPostForm("bg_color", defaultBgColor), "bg_color")
		if err != nil {
			return nil, err
		}
		bg = service.SolidBackground{Color: col}
	}

	return service.WithOpacity(bg, opacity), nil
}

// readUpload 读取上传文件并校验大小、类型和像素数
func (h *ImageHandler) readUpload(c *gin.Context, field, missingMsg string) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, service.Invalid("%s", missingMsg)
		}
		return nil, service.Invalid("%s: %v", missingMsg, err)
	}

	// 验证文件大小
	if h.cfg.Upload.MaxSize > 0 && file.Size > h.cfg.Upload.MaxSize {
		return nil, service.Invalid("%s exceeds the size limit (%d MB)", field, h.cfg.Upload.MaxSize/(1024*1024))
	}

	// 验证文件类型，未声明类型的交给解码器判断
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !h.isAllowedType(contentType) {
		return nil, service.Invalid("Unsupported file type %q for %s", contentType, field)
	}

	data, err := readAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}

	if err := service.CheckPixels(data, h.cfg.Upload.MaxPixels); service.IsValidation(err) {
		return nil, err
	}

	utils.Logger.Debug("file uploaded",
		zap.String("field", field),
		zap.String("filename", file.Filename),
		zap.String("md5", utils.BytesMD5(data)),
		zap.Int64("size", file.Size))

	return data, nil
}

func (h *ImageHandler) isAllowedType(contentType string) bool {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// writeError 校验错误 400，其余 500
func (h *ImageHandler) writeError(c *gin.Context, err error) {
	if service.IsValidation(err) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	utils.Logger.Error("failed to process image",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func parseColor(hex, field string) (color.NRGBA, error) {
	col, err := service.ParseHex(hex, 255)
	if err != nil {
		return col, service.Invalid("Invalid %s %q, expected 6 hex digits", field, hex)
	}
	return col, nil
}

// parseOpacity 空值为 255
func parseOpacity(s string) (uint8, error) {
	if s == "" {
		return 255, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 || v > 255 {
		return 0, service.Invalid("Invalid bg_opacity %q, expected 0-255", s)
	}
	return uint8(v), nil
}
