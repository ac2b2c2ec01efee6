package service

import (
	"fmt"
	"image/color"
	"strconv"
)

// ParseHex 解析 RRGGBB（不带 #）为 NRGBA，alpha 由调用方给出
func ParseHex(hex string, alpha uint8) (color.NRGBA, error) {
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	var rgb [3]uint8
	for i := range rgb {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
		}
		rgb[i] = uint8(v)
	}

	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, nil
}
