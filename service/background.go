package service

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Background 背景合成：按给定尺寸生成背景图，返回图尺寸必须等于 size
type Background interface {
	Render(size image.Point) (*image.NRGBA, error)
}

// SolidBackground 纯色背景
type SolidBackground struct {
	Color color.NRGBA
}

func (b SolidBackground) Render(size image.Point) (*image.NRGBA, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	c := b.Color
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return dst, nil
}

// GradientBackground 线性渐变背景
type GradientBackground struct {
	Gradient LinearGradient
}

func (b GradientBackground) Render(size image.Point) (*image.NRGBA, error) {
	return b.Gradient.Render(size), nil
}

// ImageBackground 用户上传的背景图，非等比拉伸到目标尺寸
type ImageBackground struct {
	Data      []byte
	MaxPixels int
}

func (b ImageBackground) Render(size image.Point) (*image.NRGBA, error) {
	if size.X <= 0 || size.Y <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, max(size.X, 0), max(size.Y, 0))), nil
	}

	img, err := Decode(b.Data, b.MaxPixels)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Size() == size {
		return img, nil
	}
	return imaging.Resize(img, size.X, size.Y, imaging.Lanczos), nil
}

// WithOpacity 把背景的 alpha 乘以 opacity/255，255 时原样返回
func WithOpacity(bg Background, opacity uint8) Background {
	if opacity == 255 {
		return bg
	}
	return opacityBackground{inner: bg, opacity: opacity}
}

type opacityBackground struct {
	inner   Background
	opacity uint8
}

func (b opacityBackground) Render(size image.Point) (*image.NRGBA, error) {
	dst, err := b.inner.Render(size)
	if err != nil {
		return nil, err
	}
	op := uint32(b.opacity)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8((uint32(dst.Pix[i])*op + 127) / 255)
	}
	return dst, nil
}
