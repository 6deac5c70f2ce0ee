package service

import (
	"context"
	"fmt"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	"abroadPlan/internal/extract"

	"go.opentelemetry.io/otel/attribute"
)

// AccommodationQuery 住宿查询
type AccommodationQuery struct {
	City    string `form:"city" json:"city"`
	Country string `form:"country" json:"country"`
	Budget  string `form:"budget" json:"budget"`
}

// Accommodation 住宿信息
type Accommodation struct {
	City        extract.Text       `json:"city"`
	AverageRent extract.Text       `json:"average_rent"`
	Options     []HousingOption    `json:"options"`
	Platforms   []Platform         `json:"platforms"`
	Tips        extract.StringList `json:"tips"`
}

// HousingOption 一种住宿方式
type HousingOption struct {
	Type        extract.Text       `json:"type" validate:"required"`
	PriceRange  extract.Text       `json:"price_range"`
	Description extract.Text       `json:"description"`
	Pros        extract.StringList `json:"pros"`
	Cons        extract.StringList `json:"cons"`
}

// Platform 找房平台
type Platform struct {
	Name        extract.Text `json:"name"`
	URL         extract.Text `json:"url"`
	Description extract.Text `json:"description"`
}

// Accommodation 住宿信息（12小时缓存，至少3种方式）
func (p *Planner) Accommodation(ctx context.Context, q AccommodationQuery) (Accommodation, bool, error) {
	city, err := required("city", q.City)
	if err != nil {
		return Accommodation{}, false, err
	}
	country, err := required("country", q.Country)
	if err != nil {
		return Accommodation{}, false, err
	}

	ctx, span := startSpan(ctx, "Accommodation", attribute.String("city", city), attribute.String("country", country))
	spec := cache.Spec[Accommodation]{
		Key: cache.Key("accommodation", city, country, q.Budget),
		TTL: config.TTLAccommodation,
		Complete: func(a Accommodation) error {
			return atLeast("accommodation options", len(a.Options), 3)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (Accommodation, error) {
		prompt := fmt.Sprintf(accommodationPrompt, city, country, orDefault(q.Budget, "a typical student budget"))
		a, err := ask[Accommodation](ctx, p.llm, prompt)
		if err != nil {
			return a, err
		}
		a.Options = validOnly(a.Options)
		if a.City == "" {
			a.City = extract.Text(city)
		}
		return a, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}
