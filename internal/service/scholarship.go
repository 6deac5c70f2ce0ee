package service

import (
	"context"
	"fmt"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	"abroadPlan/internal/extract"

	"go.opentelemetry.io/otel/attribute"
)

// ScholarshipQuery 奖学金查询
type ScholarshipQuery struct {
	Country     string `form:"country" json:"country"`
	Field       string `form:"field" json:"field"`
	Level       string `form:"level" json:"level"`
	Nationality string `form:"nationality" json:"nationality"`
}

// Scholarship 一项奖学金
type Scholarship struct {
	Name        extract.Text       `json:"name" validate:"required"`
	Provider    extract.Text       `json:"provider"`
	Amount      extract.Text       `json:"amount"`
	Coverage    extract.StringList `json:"coverage"`
	Eligibility extract.Text       `json:"eligibility"`
	Deadline    extract.Text       `json:"deadline"`
	Link        extract.Text       `json:"link"`
	Description extract.Text       `json:"description"`
}

// Scholarships 奖学金结果
type Scholarships struct {
	Scholarships []Scholarship `json:"scholarships"`
}

// Scholarships 奖学金列表（7天缓存，至少3项）
func (p *Planner) Scholarships(ctx context.Context, q ScholarshipQuery) (Scholarships, bool, error) {
	country, err := required("country", q.Country)
	if err != nil {
		return Scholarships{}, false, err
	}

	ctx, span := startSpan(ctx, "Scholarships", attribute.String("country", country))
	spec := cache.Spec[Scholarships]{
		Key: cache.Key("scholarships", country, q.Field, q.Level, q.Nationality),
		TTL: config.TTLScholarships,
		Complete: func(s Scholarships) error {
			return atLeast("scholarships", len(s.Scholarships), 3)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (Scholarships, error) {
		prompt := fmt.Sprintf(scholarshipsPrompt,
			orDefault(q.Level, "university"),
			orDefault(q.Nationality, "any country"),
			orDefault(q.Field, "any field"),
			country)
		items, err := askRecords[Scholarship](ctx, p.llm, prompt, "scholarships")
		if err != nil {
			return Scholarships{}, err
		}
		return Scholarships{Scholarships: items}, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}
