package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/service/rembg"
	"github.com/TIANLI0/CutoutKit/utils"
	"go.uber.org/zap"
)

// CutoutCache 抠图结果缓存，值为 PNG 字节；未命中返回 nil, nil
type CutoutCache interface {
	GetCutout(ctx context.Context, key string) ([]byte, error)
	SetCutout(ctx context.Context, key string, data []byte) error
}

// ImageService 串联解码、抠图、背景合成和编码
type ImageService struct {
	remover   rembg.Remover
	cache     CutoutCache
	maxPixels int
}

// NewImageService cache 可以为 nil
func NewImageService(remover rembg.Remover, cache CutoutCache, cfg *config.UploadConfig) *ImageService {
	return &ImageService{
		remover:   remover,
		cache:     cache,
		maxPixels: cfg.MaxPixels,
	}
}

// RemoverName 当前抠图后端名称
func (s *ImageService) RemoverName() string {
	return rembg.NameOf(s.remover)
}

// RemoveBackground 只抠图，返回透明背景 PNG
func (s *ImageService) RemoveBackground(ctx context.Context, input []byte) ([]byte, error) {
	cutout, err := s.cutout(ctx, input)
	if err != nil {
		return nil, err
	}

	out, err := EncodePNG(cutout)
	if err != nil {
		return nil, failed(StageEncode, err)
	}
	return out, nil
}

// Compose 抠图后合成到 bg 上，返回不透明度取决于背景的 PNG
func (s *ImageService) Compose(ctx context.Context, input []byte, bg Background) ([]byte, error) {
	cutout, err := s.cutout(ctx, input)
	if err != nil {
		return nil, err
	}

	canvas, err := bg.Render(cutout.Bounds().Size())
	if err != nil {
		return nil, failed(StageBackground, err)
	}

	result, err := Composite(cutout, canvas)
	if err != nil {
		return nil, failed(StageComposite, err)
	}

	out, err := EncodePNG(result)
	if err != nil {
		return nil, failed(StageEncode, err)
	}
	return out, nil
}

// cutout 解码并抠图，优先读缓存
func (s *ImageService) cutout(ctx context.Context, input []byte) (*image.NRGBA, error) {
	src, err := Decode(input, s.maxPixels)
	if err != nil {
		return nil, failed(StageDecode, err)
	}

	key := s.RemoverName() + ":" + utils.BytesMD5(input)
	if cached := s.cachedCutout(ctx, key, src.Bounds().Size()); cached != nil {
		return cached, nil
	}

	startTime := time.Now()
	cutout, err := s.remover.Remove(ctx, src)
	if err != nil {
		return nil, failed(StageSegment, err)
	}
	if cutout.Bounds().Size() != src.Bounds().Size() {
		return nil, failed(StageSegment, fmt.Errorf("%w: remover returned %v for %v input",
			ErrSizeMismatch, cutout.Bounds().Size(), src.Bounds().Size()))
	}

	utils.Logger.Info("background removed",
		zap.String("remover", s.RemoverName()),
		zap.Int("width", src.Rect.Dx()),
		zap.Int("height", src.Rect.Dy()),
		zap.Duration("duration", time.Since(startTime)))

	s.storeCutout(ctx, key, cutout)
	return ToNRGBA(cutout), nil
}

func (s *ImageService) cachedCutout(ctx context.Context, key string, size image.Point) *image.NRGBA {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.GetCutout(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to read cutout cache", zap.String("key", key), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}

	img, err := Decode(data, 0)
	if err != nil || img.Bounds().Size() != size {
		utils.Logger.Warn("ignoring broken cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}

	utils.Logger.Debug("cutout cache hit", zap.String("key", key))
	return img
}

func (s *ImageService) storeCutout(ctx context.Context, key string, cutout *image.NRGBA) {
	if s.cache == nil {
		return
	}

	data, err := EncodePNG(cutout)
	if err == nil {
		err = s.cache.SetCutout(ctx, key, data)
	}
	if err != nil {
		utils.Logger.Warn("failed to write cutout cache", zap.String("key", key), zap.Error(err))
	}
}
