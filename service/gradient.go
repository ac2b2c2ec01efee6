package service

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Direction 渐变方向
type Direction int

const (
	Horizontal Direction = iota // 沿 x 变化，每列同色
	Vertical                    // 沿 y 变化，每行同色
)

func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseDirection 空字符串视为 horizontal
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "horizontal":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	default:
		return Horizontal, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// LinearGradient 两色线性渐变
type LinearGradient struct {
	Start     color.NRGBA
	End       color.NRGBA
	Direction Direction
}

// ColorAt 返回变化轴上第 i 个位置（共 n 个）的颜色，各通道按
// floor((start*(n-1-i) + end*i) / (n-1)) 整数截断。n <= 1 时为起始色。
func (g LinearGradient) ColorAt(i, n int) color.NRGBA {
	if n <= 1 {
		return g.Start
	}
	i = max(0, min(i, n-1))
	return color.NRGBA{
		R: lerp(g.Start.R, g.End.R, i, n-1),
		G: lerp(g.Start.G, g.End.G, i, n-1),
		B: lerp(g.Start.B, g.End.B, i, n-1),
		A: lerp(g.Start.A, g.End.A, i, n-1),
	}
}

// Render 生成指定尺寸的渐变图
func (g LinearGradient) Render(size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if size.X <= 0 || size.Y <= 0 {
		return dst
	}

	if g.Direction == Vertical {
		for y := 0; y < size.Y; y++ {
			c := g.ColorAt(y, size.Y)
			row := dst.Pix[y*dst.Stride : y*dst.Stride+size.X*4]
			for x := 0; x < len(row); x += 4 {
				row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, c.A
			}
		}
		return dst
	}

	// 先算一行，再逐行复制
	first := dst.Pix[:size.X*4]
	for x := 0; x < size.X; x++ {
		c := g.ColorAt(x, size.X)
		first[x*4], first[x*4+1], first[x*4+2], first[x*4+3] = c.R, c.G, c.B, c.A
	}
	for y := 1; y < size.Y; y++ {
		copy(dst.Pix[y*dst.Stride:], first)
	}
	return dst
}

// lerp 在整数上计算，结果落在 [min(a,b), max(a,b)] 内
func lerp(a, b uint8, i, last int) uint8 {
	return uint8((int(a)*(last-i) + int(b)*i) / last)
}
