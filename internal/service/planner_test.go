package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/provider"
	"abroadPlan/internal/testutil"
)

type plannerEnv struct {
	planner *Planner
	chat    *testutil.ChatServer
	search  *testutil.SearchServer
}

func newTestPlanner(t *testing.T, organic []provider.OrganicResult, failImages []string, replies ...string) *plannerEnv {
	t.Helper()

	chatSrv := testutil.NewChatServer(t, replies...)
	searchSrv := testutil.NewSearchServer(t, organic, failImages...)

	llmCfg := testutil.ProviderConfig(config.ProviderLLM, chatSrv.URL)
	llmClient, err := provider.NewClient(llmCfg, chatSrv.Client(), nil)
	if err != nil {
		t.Fatalf("llm client: %v", err)
	}
	searchCfg := testutil.ProviderConfig(config.ProviderSearch, searchSrv.URL)
	searchClient, err := provider.NewClient(searchCfg, searchSrv.Client(), nil)
	if err != nil {
		t.Fatalf("search client: %v", err)
	}

	gate := cache.New(testutil.SetupTestStore(t))
	return &plannerEnv{
		planner: NewPlanner(gate, provider.NewChat(llmClient, llmCfg), provider.NewSearch(searchClient)),
		chat:    chatSrv,
		search:  searchSrv,
	}
}

const germanyReply = "Here is the information you asked for:\n```json\n" + `{
  "name": "Germany",
  "overview": "Strong economy and tuition-free public universities.",
  "cost_of_living": {"currency": "EUR", "rent": 700, "monthly_total": "1100 EUR"},
  "education": {"tuition": "free", "top_universities": ["TUM", "LMU"]},
  "pros": ["Free tuition", "Strong job market", "Central location"],
  "cons": ["Bureaucracy", "Housing shortage"],
}` + "\n```\nGood luck!"

func TestCountryDetails(t *testing.T) {
	env := newTestPlanner(t, nil, nil, germanyReply)
	ctx := context.Background()

	d, cached, err := env.planner.CountryDetails(ctx, CountryQuery{Country: "Germany", Field: "CS"})
	if err != nil {
		t.Fatalf("CountryDetails() error = %v", err)
	}
	if cached {
		t.Error("first call should not be cached")
	}
	if d.Name != "Germany" || len(d.Pros) != 3 || d.CostOfLiving.Rent != "700" {
		t.Errorf("details = %+v", d)
	}
	if d.Tips == nil || d.Work.InDemandSkills == nil {
		t.Error("missing lists should default to empty")
	}

	// 大小写与空白不同，命中同一缓存
	d2, cached, err := env.planner.CountryDetails(ctx, CountryQuery{Country: " germany ", Field: "cs"})
	if err != nil || !cached || d2.Overview != d.Overview {
		t.Errorf("second call = cached %v, err %v", cached, err)
	}
	if env.chat.Calls() != 1 {
		t.Errorf("llm calls = %d, want 1", env.chat.Calls())
	}
	if !strings.Contains(env.chat.Prompts()[0], "Germany") {
		t.Errorf("prompt = %q", env.chat.Prompts()[0])
	}
}

func TestCountryDetails_Validation(t *testing.T) {
	env := newTestPlanner(t, nil, nil, germanyReply)
	_, _, err := env.planner.CountryDetails(context.Background(), CountryQuery{Country: "   "})
	if !errors.Is(err, apperrors.ErrBadRequest) {
		t.Errorf("error = %v, want BadRequest", err)
	}
	if env.chat.Calls() != 0 {
		t.Errorf("llm calls = %d, want 0", env.chat.Calls())
	}
}

func TestCountryDetails_IncompleteThenComplete(t *testing.T) {
	env := newTestPlanner(t, nil, nil,
		`{"name":"France","overview":"Nice","pros":["food"]}`,
		`{"name":"France","overview":"Nice","pros":["food","culture"]}`,
	)
	d, _, err := env.planner.CountryDetails(context.Background(), CountryQuery{Country: "France"})
	if err != nil {
		t.Fatalf("CountryDetails() error = %v", err)
	}
	if len(d.Pros) != 2 || env.chat.Calls() != 2 {
		t.Errorf("pros = %v calls = %d", d.Pros, env.chat.Calls())
	}
}

func TestCountryDetails_ProviderFatal(t *testing.T) {
	env := newTestPlanner(t, nil, nil, germanyReply)
	env.chat.SetStatus(http.StatusBadRequest)

	_, _, err := env.planner.CountryDetails(context.Background(), CountryQuery{Country: "Germany"})
	if !errors.Is(err, apperrors.ErrProviderFatal) {
		t.Fatalf("error = %v, want ProviderFatal", err)
	}
	if strings.Contains(apperrors.PublicMessage(err), "scripted") {
		t.Error("provider text leaked into public message")
	}
}

func TestRecommendCountries(t *testing.T) {
	reply := `{"countries": [
		{"name": "Germany", "reason": "free tuition", "match_score": 92},
		{"reason": "missing name"},
		{"name": "Canada", "highlights": "post-study work permit"},
		{"name": "Netherlands", "match_score": "85"}
	]}`
	env := newTestPlanner(t, nil, nil, reply)

	pr := Profile{Field: "Computer Science", Level: "master", Languages: []string{"German", "English"}}
	r, _, err := env.planner.RecommendCountries(context.Background(), pr)
	if err != nil {
		t.Fatalf("RecommendCountries() error = %v", err)
	}
	if len(r.Countries) != 3 {
		t.Fatalf("countries = %+v", r.Countries)
	}
	if r.Countries[0].MatchScore != "92" || len(r.Countries[1].Highlights) != 1 {
		t.Errorf("countries = %+v", r.Countries)
	}

	// 语言顺序不同视为同一画像
	pr.Languages = []string{"English", "German"}
	if _, cached, err := env.planner.RecommendCountries(context.Background(), pr); err != nil || !cached {
		t.Errorf("reordered profile: cached=%v err=%v", cached, err)
	}

	if _, _, err := env.planner.RecommendCountries(context.Background(), Profile{}); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Errorf("empty profile error = %v", err)
	}
}

func TestRecommendCountries_TooFew(t *testing.T) {
	env := newTestPlanner(t, nil, nil, `{"countries":[{"name":"Japan"}]}`)
	_, _, err := env.planner.RecommendCountries(context.Background(), Profile{Field: "Art"})
	if !errors.Is(err, apperrors.ErrIncompleteResult) {
		t.Fatalf("error = %v, want IncompleteResult", err)
	}
	if apperrors.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d", apperrors.HTTPStatus(err))
	}
	if env.chat.Calls() != 2 {
		t.Errorf("llm calls = %d, want 2", env.chat.Calls())
	}
}
