package utils

import (
	"crypto/rand"
	mathrand "math/rand"
	"strconv"
	"sync/atomic"
	"time"
)

// 字符集常量
// 不含易混淆字符的需求暂不存在，推广码展示场景允许全量大写字母和数字
const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// 全局原子计数器，用于确保生成的单号唯一
var codeCounter int64

// GenerateRandomCode 生成指定长度的随机字符码
func GenerateRandomCode(length int) string {
	code := make([]byte, length)

	// 使用安全的随机数生成
	_, err := rand.Read(code)
	if err != nil {
		// 如果安全随机数生成失败，回退到不安全的方法
		// 创建一个新的随机数生成器实例，而不是使用全局的Seed
		r := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
		for i := range code {
			code[i] = charset[r.Intn(len(charset))]
		}
		return string(code)
	}

	// 将随机字节映射到字符集
	for i := range code {
		code[i] = charset[int(code[i])%len(charset)]
	}

	return string(code)
}

// GenerateAffiliateCode 生成达人推广码
// 8位随机码，落库时靠唯一索引兜底，冲突由调用方重试
func GenerateAffiliateCode() string {
	return GenerateRandomCode(8)
}

// GeneratePayoutReferenceNo 生成付款单号
// 时间戳+原子计数器+随机尾缀，保证同一进程内不重复
func GeneratePayoutReferenceNo() string {
	counter := atomic.AddInt64(&codeCounter, 1)
	randomPart := GenerateRandomCode(4)
	return "PAY" + strconv.FormatInt(time.Now().UnixNano(), 36) + strconv.FormatInt(counter, 36) + randomPart
}
