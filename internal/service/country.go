package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	"abroadPlan/internal/extract"

	"go.opentelemetry.io/otel/attribute"
)

// CountryQuery 国家详情查询
type CountryQuery struct {
	Country string `form:"country" json:"country"`
	Field   string `form:"field" json:"field"`
	Level   string `form:"level" json:"level"`
}

// CountryDetails 国家详情
type CountryDetails struct {
	Name         extract.Text       `json:"name"`
	Overview     extract.Text       `json:"overview"`
	CostOfLiving CostOfLiving       `json:"cost_of_living"`
	Education    EducationInfo      `json:"education"`
	Work         WorkInfo           `json:"work"`
	VisaSummary  extract.Text       `json:"visa_summary"`
	Pros         extract.StringList `json:"pros"`
	Cons         extract.StringList `json:"cons"`
	Tips         extract.StringList `json:"tips"`
}

// CostOfLiving 生活成本
type CostOfLiving struct {
	Currency     extract.Text `json:"currency"`
	Rent         extract.Text `json:"rent"`
	Food         extract.Text `json:"food"`
	Transport    extract.Text `json:"transport"`
	Utilities    extract.Text `json:"utilities"`
	MonthlyTotal extract.Text `json:"monthly_total"`
}

// EducationInfo 教育概况
type EducationInfo struct {
	Overview             extract.Text       `json:"overview"`
	Tuition              extract.Text       `json:"tuition"`
	TopUniversities      extract.StringList `json:"top_universities"`
	LanguageRequirements extract.Text       `json:"language_requirements"`
}

// WorkInfo 就业概况
type WorkInfo struct {
	JobMarket      extract.Text       `json:"job_market"`
	AverageSalary  extract.Text       `json:"average_salary"`
	WorkRights     extract.Text       `json:"work_rights"`
	InDemandSkills extract.StringList `json:"in_demand_skills"`
}

func countryComplete(d CountryDetails) error {
	if d.Overview == "" {
		return atLeast("country overview", 0, 1)
	}
	return atLeast("country pros", len(d.Pros), 2)
}

// CountryDetails 国家详情（12小时缓存）
func (p *Planner) CountryDetails(ctx context.Context, q CountryQuery) (CountryDetails, bool, error) {
	country, err := required("country", q.Country)
	if err != nil {
		return CountryDetails{}, false, err
	}

	ctx, span := startSpan(ctx, "CountryDetails", attribute.String("country", country))
	spec := cache.Spec[CountryDetails]{
		Key:      cache.Key("country_details", country, q.Field, q.Level),
		TTL:      config.TTLCountryDetails,
		Complete: countryComplete,
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (CountryDetails, error) {
		prompt := fmt.Sprintf(countryDetailsPrompt, country, orDefault(q.Level, "any level"), orDefault(q.Field, "any field"))
		d, err := ask[CountryDetails](ctx, p.llm, prompt)
		if err != nil {
			return d, err
		}
		if d.Name == "" {
			d.Name = extract.Text(country)
		}
		return d, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}

// Profile 推荐国家所需的用户画像
type Profile struct {
	Field       string   `json:"field"`
	Level       string   `json:"level"`
	Budget      string   `json:"budget"`
	Languages   []string `json:"languages"`
	Preferences []string `json:"preferences"`
	Nationality string   `json:"nationality"`
}

// CountryMatch 一条国家推荐
type CountryMatch struct {
	Name          extract.Text       `json:"name" validate:"required"`
	Reason        extract.Text       `json:"reason"`
	MatchScore    extract.Text       `json:"match_score"`
	AvgTuition    extract.Text       `json:"avg_tuition"`
	AvgLivingCost extract.Text       `json:"avg_living_cost"`
	Highlights    extract.StringList `json:"highlights"`
}

// Recommendations 国家推荐结果
type Recommendations struct {
	Countries []CountryMatch `json:"countries"`
}

// cacheParts 画像转为缓存键，列表排序后参与，顺序不同视为同一画像
func (pr Profile) cacheParts() []string {
	langs := slices.Clone(pr.Languages)
	prefs := slices.Clone(pr.Preferences)
	slices.Sort(langs)
	slices.Sort(prefs)
	return []string{
		pr.Field, pr.Level, pr.Budget,
		strings.Join(langs, ","), strings.Join(prefs, ","),
		pr.Nationality,
	}
}

// RecommendCountries 根据画像推荐国家（24小时缓存，至少3个）
func (p *Planner) RecommendCountries(ctx context.Context, pr Profile) (Recommendations, bool, error) {
	field, err := required("field", pr.Field)
	if err != nil {
		return Recommendations{}, false, err
	}

	ctx, span := startSpan(ctx, "RecommendCountries", attribute.String("field", field))
	spec := cache.Spec[Recommendations]{
		Key: cache.Key("recommendations", pr.cacheParts()...),
		TTL: config.TTLRecommendations,
		Complete: func(r Recommendations) error {
			return atLeast("recommended countries", len(r.Countries), 3)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (Recommendations, error) {
		prompt := fmt.Sprintf(recommendPrompt,
			field,
			orDefault(pr.Level, "not specified"),
			orDefault(pr.Budget, "not specified"),
			orDefault(strings.Join(pr.Languages, ", "), "English"),
			orDefault(strings.Join(pr.Preferences, ", "), "none"),
			orDefault(pr.Nationality, "not specified"),
		)
		countries, err := askRecords[CountryMatch](ctx, p.llm, prompt, "countries")
		if err != nil {
			return Recommendations{}, err
		}
		return Recommendations{Countries: countries}, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}
