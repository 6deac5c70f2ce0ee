// Package provider 上游API客户端：OpenAI兼容的Chat接口与Serper兼容的搜索接口
// 两者都建立在 fetch.Client 之上，各自拥有独立的密钥池与调度器
package provider

import (
	"net/http"

	"abroadPlan/internal/config"
	"abroadPlan/internal/dispatch"
	"abroadPlan/internal/fetch"
	"abroadPlan/internal/keypool"
)

// NewClient 为一个Provider组装 密钥池 + 调度器 + fetch.Client
// 没有配置任何Key时返回 MissingConfig
func NewClient(cfg *config.ProviderConfig, httpClient *http.Client, observer fetch.Observer, opts ...keypool.Option) (*fetch.Client, error) {
	poolOpts := make([]keypool.Option, 0, len(opts)+1)
	if cfg.DefaultCooldown > 0 {
		poolOpts = append(poolOpts, keypool.WithDefaultCooldown(cfg.DefaultCooldown))
	}
	poolOpts = append(poolOpts, opts...)

	pool, err := keypool.New(cfg.Name, cfg.Keys, poolOpts...)
	if err != nil {
		return nil, err
	}

	c := fetch.New(cfg, pool, dispatch.New(cfg.Name, cfg.MinDelay), httpClient)
	c.Observer = observer
	return c, nil
}
