package service

import (
	"context"
	"fmt"
	"strings"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/extract"

	"go.opentelemetry.io/otel/attribute"
)

// 签证目的
const (
	PurposeStudy = "study"
	PurposeWork  = "work"
)

// VisaQuery 签证查询
type VisaQuery struct {
	Country     string `form:"country" json:"country"`
	Nationality string `form:"nationality" json:"nationality"`
	Purpose     string `form:"purpose" json:"purpose"`
}

// VisaInfo 签证信息
type VisaInfo struct {
	Country             extract.Text       `json:"country"`
	Purpose             string             `json:"purpose"`
	VisaTypes           []VisaType         `json:"visa_types"`
	GeneralRequirements extract.StringList `json:"general_requirements"`
	Tips                extract.StringList `json:"tips"`
}

// VisaType 一种签证
type VisaType struct {
	Name           extract.Text       `json:"name" validate:"required"`
	Purpose        extract.Text       `json:"purpose"`
	Duration       extract.Text       `json:"duration"`
	ProcessingTime extract.Text       `json:"processing_time"`
	Cost           extract.Text       `json:"cost"`
	Requirements   extract.StringList `json:"requirements"`
	Documents      extract.StringList `json:"documents"`
	WorkRights     extract.Text       `json:"work_rights"`
}

// Visa 签证信息（30天缓存，至少1种签证）
func (p *Planner) Visa(ctx context.Context, q VisaQuery) (VisaInfo, bool, error) {
	country, err := required("country", q.Country)
	if err != nil {
		return VisaInfo{}, false, err
	}
	purpose := strings.ToLower(orDefault(q.Purpose, PurposeStudy))
	if purpose != PurposeStudy && purpose != PurposeWork {
		return VisaInfo{}, false, apperrors.BadRequest("purpose must be study or work")
	}

	ctx, span := startSpan(ctx, "Visa", attribute.String("country", country), attribute.String("purpose", purpose))
	spec := cache.Spec[VisaInfo]{
		Key: cache.Key("visa", country, q.Nationality, purpose),
		TTL: config.TTLVisa,
		Complete: func(v VisaInfo) error {
			return atLeast("visa types", len(v.VisaTypes), 1)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (VisaInfo, error) {
		prompt := fmt.Sprintf(visaPrompt, purpose, orDefault(q.Nationality, "any country"), country)
		v, err := ask[VisaInfo](ctx, p.llm, prompt)
		if err != nil {
			return v, err
		}
		v.VisaTypes = validOnly(v.VisaTypes)
		v.Purpose = purpose
		if v.Country == "" {
			v.Country = extract.Text(country)
		}
		return v, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}
