package service

import (
	"context"
	"fmt"
	"strings"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/extract"
	"abroadPlan/internal/provider"

	"go.opentelemetry.io/otel/attribute"
)

// jobSearchResults 交给 LLM 整理的搜索结果条数
const jobSearchResults = 10

// JobQuery 职位查询
type JobQuery struct {
	Role       string `form:"role" json:"role"`
	Country    string `form:"country" json:"country"`
	City       string `form:"city" json:"city"`
	Experience string `form:"experience" json:"experience"`
}

// Job 一个职位
type Job struct {
	Title        extract.Text       `json:"title" validate:"required"`
	Company      extract.Text       `json:"company"`
	Location     extract.Text       `json:"location"`
	Salary       extract.Text       `json:"salary"`
	Type         extract.Text       `json:"type"`
	Description  extract.Text       `json:"description"`
	Requirements extract.StringList `json:"requirements"`
	Link         extract.Text       `json:"link"`
}

// JobListings 职位结果，附带原始搜索来源
type JobListings struct {
	Jobs    []Job                    `json:"jobs"`
	Sources []provider.OrganicResult `json:"sources"`
}

// Jobs 网页搜索 → LLM整理（6小时缓存，至少3个）
func (p *Planner) Jobs(ctx context.Context, q JobQuery) (JobListings, bool, error) {
	role, err := required("role", q.Role)
	if err != nil {
		return JobListings{}, false, err
	}
	country, err := required("country", q.Country)
	if err != nil {
		return JobListings{}, false, err
	}
	location := country
	if city := strings.TrimSpace(q.City); city != "" {
		location = city + ", " + country
	}

	ctx, span := startSpan(ctx, "Jobs", attribute.String("role", role), attribute.String("country", country))
	spec := cache.Spec[JobListings]{
		Key: cache.Key("jobs", role, country, q.City, q.Experience),
		TTL: config.TTLJobs,
		Complete: func(l JobListings) error {
			return atLeast("jobs", len(l.Jobs), 3)
		},
	}
	out, cached, err := cache.Load(ctx, p.gate, spec, func(ctx context.Context) (JobListings, error) {
		results, err := p.search.Search(ctx, fmt.Sprintf("%s jobs in %s", role, location), jobSearchResults)
		if err != nil {
			return JobListings{}, err
		}
		if len(results) == 0 {
			return JobListings{}, apperrors.IncompleteResult("job search results", 0, 1)
		}

		prompt := fmt.Sprintf(jobsPrompt, role, location, orDefault(q.Experience, "any"), formatResults(results))
		jobs, err := askRecords[Job](ctx, p.llm, prompt, "jobs")
		if err != nil {
			return JobListings{}, err
		}
		return JobListings{Jobs: jobs, Sources: results}, nil
	})
	endSpan(span, cached, err)
	return out, cached, err
}

// formatResults 把搜索结果编号列出，放进提示词
func formatResults(results []provider.OrganicResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return b.String()
}
