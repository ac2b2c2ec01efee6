package rembg

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/disintegration/imaging"
)

var (
	ErrRemoveFailed = errors.New("background removal failed")
	ErrQueueFull    = errors.New("remover queue is full, retry later")
)

// Remover 前景提取：输入原图，返回同尺寸 NRGBA，背景像素 alpha 趋近 0
type Remover interface {
	Remove(ctx context.Context, img image.Image) (*image.NRGBA, error)
}

type named interface {
	Name() string
}

// NameOf 返回后端名称，用于日志和缓存 key
func NameOf(r Remover) string {
	if n, ok := r.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}

// New 按配置创建后端并套上并发限制
func New(cfg *config.RemoverConfig) (Remover, error) {
	var (
		r   Remover
		err error
	)

	switch cfg.Backend {
	case "", "automask":
		r = NewAutoMask(cfg.AnalysisMaxSide)
	case "remote":
		if cfg.Endpoint == "" {
			return nil, errors.New("remover.endpoint is required for the remote backend")
		}
		r = NewRemote(cfg.Endpoint, cfg.Timeout)
	case "grabcut":
		r, err = NewGrabCut(cfg)
		if err != nil {
			return nil, err
		}
	case "none":
		r = Passthrough{}
	default:
		return nil, fmt.Errorf("unknown remover backend %q", cfg.Backend)
	}

	return NewLimited(r, cfg.MaxConcurrent, cfg.QueueTimeout), nil
}

// Passthrough 不做任何处理，只转换像素格式
type Passthrough struct{}

func (Passthrough) Name() string { return "none" }

func (Passthrough) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, failed(err)
	}
	return toNRGBA(img), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(img)
}

func failed(err error) error {
	return fmt.Errorf("%w: %w", ErrRemoveFailed, err)
}
