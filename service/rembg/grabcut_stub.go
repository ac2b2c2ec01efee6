//go:build !gocv

package rembg

import (
	"errors"

	"github.com/TIANLI0/CutoutKit/config"
)

// NewGrabCut 未启用 gocv 时不可用，编译时加 -tags gocv
func NewGrabCut(_ *config.RemoverConfig) (Remover, error) {
	return nil, errors.New("grabcut backend requires a build with -tags gocv")
}
