package service

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证和授权服务
// - 管理接口：登录换取24小时动态Token
// - 业务接口：可选的静态Token（ABROAD_AUTH），未配置时公开
// - 登录速率限制（防暴力破解）
type AuthService struct {
	passwordHash []byte               // 管理员密码（bcrypt）
	validTokens  map[string]time.Time // Token → 过期时间
	tokensMux    sync.RWMutex

	authTokens map[string]bool

	loginRateLimiter *util.LoginRateLimiter
	now              func() time.Time
}

// NewAuthService 创建认证服务实例
// password 可以是明文（启动时哈希）或已有的 bcrypt 哈希；为空时管理接口不可登录
func NewAuthService(password string, authTokens []string, loginRateLimiter *util.LoginRateLimiter) (*AuthService, error) {
	s := &AuthService{
		validTokens:      make(map[string]time.Time),
		authTokens:       make(map[string]bool, len(authTokens)),
		loginRateLimiter: loginRateLimiter,
		now:              time.Now,
	}
	for _, t := range authTokens {
		if t = strings.TrimSpace(t); t != "" {
			s.authTokens[t] = true
		}
	}

	switch {
	case password == "":
	case isBcryptHash(password):
		s.passwordHash = []byte(password)
	default:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperrors.InvalidConfig("ABROAD_ADMIN_PASS", err)
		}
		s.passwordHash = hash
	}
	return s, nil
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// generateToken 生成安全Token（64字符十六进制）
func (s *AuthService) generateToken() string {
	b := make([]byte, config.TokenRandomBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// isValidToken 验证Token有效性（过期即删除）
func (s *AuthService) isValidToken(token string) bool {
	s.tokensMux.RLock()
	expiry, exists := s.validTokens[token]
	s.tokensMux.RUnlock()

	if !exists {
		return false
	}
	if s.now().After(expiry) {
		s.tokensMux.Lock()
		delete(s.validTokens, token)
		s.tokensMux.Unlock()
		return false
	}
	return true
}

// CleanExpiredTokens 清理过期Token（定期任务）
func (s *AuthService) CleanExpiredTokens() {
	now := s.now()

	s.tokensMux.RLock()
	toDelete := make([]string, 0, len(s.validTokens)/10)
	for token, expiry := range s.validTokens {
		if now.After(expiry) {
			toDelete = append(toDelete, token)
		}
	}
	s.tokensMux.RUnlock()

	if len(toDelete) > 0 {
		s.tokensMux.Lock()
		for _, token := range toDelete {
			if expiry, exists := s.validTokens[token]; exists && now.After(expiry) {
				delete(s.validTokens, token)
			}
		}
		s.tokensMux.Unlock()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	return strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func abortUnauthorized(c *gin.Context) {
	err := apperrors.Unauthorized("missing or invalid token")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   apperrors.PublicMessage(err),
		"code":    err.Code,
	})
}

// RequireTokenAuth 管理接口认证：登录Token或静态Token
func (s *AuthService) RequireTokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if s.isValidToken(token) || s.authTokens[token] {
				c.Next()
				return
			}
		}
		abortUnauthorized(c)
	}
}

// RequireAPIAuth 业务接口认证：未配置静态Token时放行
func (s *AuthService) RequireAPIAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.authTokens) == 0 {
			c.Next()
			return
		}
		if token, ok := bearerToken(c); ok && s.authTokens[token] {
			c.Next()
			return
		}
		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" && s.authTokens[apiKey] {
			c.Next()
			return
		}
		abortUnauthorized(c)
	}
}

// HandleLogin 处理登录请求（集成登录速率限制）
func (s *AuthService) HandleLogin(c *gin.Context) {
	clientIP := c.ClientIP()

	if !s.loginRateLimiter.AllowAttempt(clientIP) {
		lockout := s.loginRateLimiter.GetLockoutTime(clientIP)
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":         false,
			"error":           "Too many failed login attempts. Please try again later.",
			"lockout_seconds": lockout,
		})
		return
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request format",
			"code":    apperrors.ErrCodeBadRequest,
		})
		return
	}

	if len(s.passwordHash) == 0 || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)) != nil {
		log.Warn().Str("ip", clientIP).Msg("[WARN] 管理员登录失败")
		abortUnauthorized(c)
		return
	}

	s.loginRateLimiter.RecordSuccess(clientIP)

	token := s.generateToken()
	s.tokensMux.Lock()
	s.validTokens[token] = s.now().Add(config.TokenExpiry)
	s.tokensMux.Unlock()

	log.Info().Str("ip", clientIP).Msg("[INFO] 管理员登录成功")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token":      token,
			"expires_in": int(config.TokenExpiry.Seconds()),
		},
	})
}

// HandleLogout 处理登出请求
func (s *AuthService) HandleLogout(c *gin.Context) {
	if token, ok := bearerToken(c); ok {
		s.tokensMux.Lock()
		delete(s.validTokens, token)
		s.tokensMux.Unlock()
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
