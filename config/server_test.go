package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPort(t *testing.T) {
	// SERVER_PORT优先
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PORT", "3000")
	assert.Equal(t, "9090", GetPort())

	// 只设置PORT时兼容读取
	t.Setenv("SERVER_PORT", "")
	assert.Equal(t, "3000", GetPort())

	// 都未设置时使用默认端口
	t.Setenv("PORT", "")
	assert.Equal(t, "8080", GetPort())
}
