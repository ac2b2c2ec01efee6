package utils

import (
	"github.com/segmentio/ksuid"
)

// GenerateID 生成按时间有序的请求ID
func GenerateID() string {
	return ksuid.New().String()
}
