package service

import (
	"context"
	"fmt"
	"net/url"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/extract"
	"abroadPlan/internal/fanout"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// UniversityQuery 院校查询
type UniversityQuery struct {
	University string `form:"university" json:"university"`
	Country    string `form:"country" json:"country"`
	Field      string `form:"field" json:"field"`
	Level      string `form:"level" json:"level"`
}

// University 院校详情
type University struct {
	Name         extract.Text       `json:"name"`
	Country      extract.Text       `json:"country"`
	City         extract.Text       `json:"city"`
	Overview     extract.Text       `json:"overview"`
	Ranking      extract.Text       `json:"ranking"`
	Website      extract.Text       `json:"website"`
	TuitionFees  extract.Text       `json:"tuition_fees"`
	Programs     []Program          `json:"programs"`
	Admission    Admission          `json:"admission"`
	Scholarships extract.StringList `json:"scholarships"`
	StudentLife  extract.Text       `json:"student_life"`
}

// Program 专业项目
type Program struct {
	Name     extract.Text `json:"name" validate:"required"`
	Degree   extract.Text `json:"degree"`
	Duration extract.Text `json:"duration"`
	Language extract.Text `json:"language"`
	Tuition  extract.Text `json:"tuition"`
}

// Admission 录取要求
type Admission struct {
	Requirements   extract.StringList `json:"requirements"`
	Deadlines      extract.Text       `json:"deadlines"`
	LanguageTests  extract.StringList `json:"language_tests"`
	AcceptanceRate extract.Text       `json:"acceptance_rate"`
}

// UniversitySummary 院校列表中的一项
type UniversitySummary struct {
	Name        extract.Text       `json:"name" validate:"required"`
	City        extract.Text       `json:"city"`
	Ranking     extract.Text       `json:"ranking"`
	Overview    extract.Text       `json:"overview"`
	TuitionFees extract.Text       `json:"tuition_fees"`
	Website     extract.Text       `json:"website"`
	Programs    extract.StringList `json:"programs"`
	ImageURL    string             `json:"image_url"`
}

// UniversityList 院校列表
type UniversityList struct {
	Country      string              `json:"country"`
	Universities []UniversitySummary `json:"universities"`
}

// UniversityDetails 院校详情（14天缓存，至少3个有名称的专业）
func (p *Planner) UniversityDetails(ctx context.Context, q UniversityQuery) (University, bool, error) {
	name, err := required("university", q.University)
	if err != nil {
		return University{}, false, err
	}
	country, err := required("country", q.Country)
	if err != nil {
		return University{}, false, err
	}

	ctx, span := startSpan(ctx, "UniversityDetails",
		attribute.String("university", name), attribute.String("country", country))
	spec := cache.Spec[University]{
		Key: cache.Key("university_details", name, country),
		TTL: config.TTLUniversityDetails,
		Complete: func(u University) error {
			if u.Name == "" {
				return atLeast("university name", 0, 1)
			}
			return atLeast("university programs", len(u.Programs), 3)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (University, error) {
		u, err := ask[University](ctx, p.llm, fmt.Sprintf(universityDetailsPrompt, name, country))
		if err != nil {
			return u, err
		}
		u.Programs = validOnly(u.Programs)
		if u.Name == "" {
			u.Name = extract.Text(name)
		}
		if u.Country == "" {
			u.Country = extract.Text(country)
		}
		return u, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}

// ListUniversities 国家内的院校列表（14天缓存，至少5所）
// 每所院校并发查一张图片，失败时使用占位图
func (p *Planner) ListUniversities(ctx context.Context, q UniversityQuery) (UniversityList, bool, error) {
	country, err := required("country", q.Country)
	if err != nil {
		return UniversityList{}, false, err
	}

	ctx, span := startSpan(ctx, "ListUniversities", attribute.String("country", country))
	spec := cache.Spec[UniversityList]{
		Key: cache.Key("university_list", country, q.Field, q.Level),
		TTL: config.TTLUniversityList,
		Complete: func(l UniversityList) error {
			return atLeast("universities", len(l.Universities), 5)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (UniversityList, error) {
		prompt := fmt.Sprintf(universityListPrompt, country, orDefault(q.Field, "any field"), orDefault(q.Level, "any"))
		unis, err := askRecords[UniversitySummary](ctx, p.llm, prompt, "universities")
		if err != nil {
			return UniversityList{}, err
		}
		p.attachImages(ctx, country, unis)
		return UniversityList{Country: country, Universities: unis}, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}

func (p *Planner) attachImages(ctx context.Context, country string, unis []UniversitySummary) {
	images := fanout.Gather(ctx, len(unis), p.imageConcurrency,
		func(ctx context.Context, i int) (string, error) {
			results, err := p.search.Images(ctx, fmt.Sprintf("%s %s campus", unis[i].Name, country), 1)
			if err != nil {
				return "", err
			}
			for _, r := range results {
				if r.ImageURL != "" {
					return r.ImageURL, nil
				}
			}
			return "", apperrors.NotFound("image")
		},
		func(i int, err error) string {
			log.Debug().Err(err).Str("university", string(unis[i].Name)).Msg("院校图片使用占位图")
			return PlaceholderImage(string(unis[i].Name))
		},
	)
	for i := range unis {
		unis[i].ImageURL = images[i]
	}
}

// PlaceholderImage 图片搜索失败时的占位图地址
func PlaceholderImage(name string) string {
	return "https://placehold.co/600x400?text=" + url.QueryEscape(name)
}
