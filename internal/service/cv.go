package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/extract"

	"go.opentelemetry.io/otel/attribute"
)

// CVProfile 从CV文本提取的结构化画像
type CVProfile struct {
	Contact        Contact            `json:"contact"`
	Summary        extract.Text       `json:"summary"`
	Education      []EducationEntry   `json:"education"`
	Experience     []ExperienceEntry  `json:"experience"`
	Skills         extract.StringList `json:"skills"`
	Languages      extract.StringList `json:"languages"`
	Certifications extract.StringList `json:"certifications"`
}

// Contact 联系方式
type Contact struct {
	Name     extract.Text `json:"name"`
	Email    extract.Text `json:"email"`
	Phone    extract.Text `json:"phone"`
	Location extract.Text `json:"location"`
	LinkedIn extract.Text `json:"linkedin"`
}

// EducationEntry 教育经历
type EducationEntry struct {
	Institution extract.Text `json:"institution"`
	Degree      extract.Text `json:"degree"`
	Field       extract.Text `json:"field"`
	Start       extract.Text `json:"start"`
	End         extract.Text `json:"end"`
	Grade       extract.Text `json:"grade"`
}

// ExperienceEntry 工作经历
type ExperienceEntry struct {
	Company     extract.Text `json:"company"`
	Title       extract.Text `json:"title"`
	Location    extract.Text `json:"location"`
	Start       extract.Text `json:"start"`
	End         extract.Text `json:"end"`
	Description extract.Text `json:"description"`
}

// CVDigest CV文本的缓存键（SHA-256）
func CVDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ParseCV 结构化CV文本（30天缓存，按文本摘要）
func (p *Planner) ParseCV(ctx context.Context, text string) (CVProfile, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CVProfile{}, false, apperrors.BadRequest("cv text is required")
	}
	if n := utf8.RuneCountInString(text); n > config.MaxCVTextLength {
		return CVProfile{}, false, apperrors.BadRequest(
			fmt.Sprintf("cv text is too long (%d characters, max %d)", n, config.MaxCVTextLength))
	}

	digest := CVDigest(text)
	ctx, span := startSpan(ctx, "ParseCV", attribute.String("cv.digest", digest[:12]))
	spec := cache.Spec[CVProfile]{
		Key: cache.EntryKey{Namespace: "cv", Key: digest},
		TTL: config.TTLCVParse,
		Complete: func(cv CVProfile) error {
			if cv.Contact.Name == "" && len(cv.Education) == 0 && len(cv.Experience) == 0 && len(cv.Skills) == 0 {
				return atLeast("cv sections", 0, 1)
			}
			return nil
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (CVProfile, error) {
		return ask[CVProfile](ctx, p.llm, fmt.Sprintf(cvPrompt, text))
	})
	endSpan(span, cached, err)
	return out, cached, err
}
