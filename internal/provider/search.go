package provider

import (
	"context"

	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/fetch"
	"abroadPlan/internal/util"
)

// OrganicResult 网页搜索结果
type OrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// ImageResult 图片搜索结果
type ImageResult struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Link     string `json:"link"`
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

// Search Serper兼容的搜索客户端
type Search struct {
	client *fetch.Client
}

// NewSearch 创建搜索客户端
func NewSearch(client *fetch.Client) *Search {
	return &Search{client: client}
}

// Client 底层调用器
func (s *Search) Client() *fetch.Client { return s.client }

// Search 网页搜索，返回 organic 结果
func (s *Search) Search(ctx context.Context, query string, num int) ([]OrganicResult, error) {
	var out struct {
		Organic []OrganicResult `json:"organic"`
	}
	if err := s.post(ctx, "/search", query, num, &out); err != nil {
		return nil, err
	}
	if out.Organic == nil {
		out.Organic = []OrganicResult{}
	}
	return out.Organic, nil
}

// Images 图片搜索
func (s *Search) Images(ctx context.Context, query string, num int) ([]ImageResult, error) {
	var out struct {
		Images []ImageResult `json:"images"`
	}
	if err := s.post(ctx, "/images", query, num, &out); err != nil {
		return nil, err
	}
	if out.Images == nil {
		out.Images = []ImageResult{}
	}
	return out.Images, nil
}

func (s *Search) post(ctx context.Context, endpoint, query string, num int, out any) error {
	body, err := util.MarshalJSON(searchRequest{Q: query, Num: num})
	if err != nil {
		return apperrors.MalformedResponse("encode search request", err)
	}
	resp, err := s.client.Call(ctx, fetch.Request{Endpoint: endpoint, Body: body})
	if err != nil {
		return err
	}
	if err := util.UnmarshalJSON(resp.Body, out); err != nil {
		return apperrors.MalformedResponse("search response is not valid JSON", err)
	}
	return nil
}
