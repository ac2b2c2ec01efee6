package service

import (
	"fmt"
	"image"
	"math"
)

// Composite 把前景按自身 alpha 叠加到背景上（非预乘 over 运算），两者尺寸必须一致
func Composite(fg, bg *image.NRGBA) (*image.NRGBA, error) {
	size := fg.Bounds().Size()
	if bg.Bounds().Size() != size {
		return nil, fmt.Errorf("%w: %v vs %v", ErrSizeMismatch, size, bg.Bounds().Size())
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		fi := fg.PixOffset(fg.Rect.Min.X, fg.Rect.Min.Y+y)
		bi := bg.PixOffset(bg.Rect.Min.X, bg.Rect.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < size.X; x++ {
			over(dst.Pix[di:di+4], fg.Pix[fi:fi+4], bg.Pix[bi:bi+4])
			fi += 4
			bi += 4
			di += 4
		}
	}
	return dst, nil
}

func over(dst, f, b []uint8) {
	switch f[3] {
	case 255:
		copy(dst, f)
		return
	case 0:
		copy(dst, b)
		return
	}

	fa := float64(f[3]) / 255
	ba := float64(b[3]) / 255 * (1 - fa)
	outA := fa + ba

	for c := 0; c < 3; c++ {
		dst[c] = clampByte((float64(f[c])*fa + float64(b[c])*ba) / outA)
	}
	dst[3] = clampByte(outA * 255)
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
