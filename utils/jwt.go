package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// 从环境变量获取JWT密钥，如果未设置则使用随机生成的密钥
// 在生产环境中，应确保设置了环境变量JWT_SECRET
var jwtSecret = getJWTSecret()

// getJWTSecret 从环境变量获取JWT密钥
// 如果环境变量未设置，则生成随机密钥（仅用于开发环境）
func getJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// 检查当前环境
		env := os.Getenv("ENV")
		if env == "production" {
			log.Fatal("在生产环境中必须设置JWT_SECRET环境变量")
		}

		// 在开发环境中，生成随机密钥
		log.Println("警告: JWT_SECRET环境变量未设置，将使用随机生成的密钥（仅用于开发环境）")

		// 生成32字节的随机密钥
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			log.Printf("生成随机密钥失败: %v，将使用备用密钥", err)
			return []byte("affiliate_engine_jwt_secret_key_for_development_only_do_not_use_in_production")
		}

		// 将随机字节编码为base64字符串
		secret = base64.StdEncoding.EncodeToString(randomKey)
	}

	// 确保密钥长度足够
	if len(secret) < 16 {
		log.Println("警告: JWT密钥长度不足，建议使用至少32字符的密钥")
	}

	return []byte(secret)
}

// InfluencerClaims 定义JWT令牌的声明结构
// 包含达人的身份信息和标准JWT声明
type InfluencerClaims struct {
	InfluencerID         uint   `json:"influencer_id"` // 达人ID，用于身份识别
	Username             string `json:"username"`      // 达人用户名，用于日志和审计
	jwt.RegisteredClaims        // 嵌入标准JWT声明（如过期时间、签发时间等）
}

// GenerateToken 为指定达人生成签名的JWT令牌
// 参数:
//   - influencerID: 达人的唯一标识符
//   - username: 达人的用户名
//   - duration: 令牌的有效期限
func GenerateToken(influencerID uint, username string, duration time.Duration) (string, error) {
	expirationTime := time.Now().Add(duration)

	claims := InfluencerClaims{
		InfluencerID: influencerID,
		Username:     username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	// 创建令牌对象并使用HS256算法签名
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken 解析并验证JWT令牌
// 验证令牌的签名并提取其中的声明信息
func ParseToken(tokenString string) (*InfluencerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InfluencerClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("无效的签名方法")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*InfluencerClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("无效的令牌")
}

// GetInfluencerIDFromToken 从Fiber上下文中获取达人ID
// 优先读取中间件写入的上下文值，否则从Authorization头解析令牌
func GetInfluencerIDFromToken(c *fiber.Ctx) (uint, error) {
	influencerID := c.Locals("influencer_id")

	// 如果已经在上下文中存在，直接返回
	if id, ok := influencerID.(uint); ok {
		return id, nil
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, errors.New("未提供授权令牌")
	}

	if len(authHeader) <= 7 || authHeader[:7] != "Bearer " {
		return 0, errors.New("无效的授权令牌格式")
	}

	tokenString := authHeader[7:]

	claims, err := ParseToken(tokenString)
	if err != nil {
		return 0, err
	}

	return claims.InfluencerID, nil
}
