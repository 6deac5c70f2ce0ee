package fetch

import (
	"crypto/tls"
	"net"
	"net/http"

	"abroadPlan/internal/config"
)

// NewHTTPClient 上游共用的HTTP客户端
// 不设置全局超时：每次尝试由 Policy.Timeout 单独控制
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   config.HTTPDialTimeout,
		KeepAlive: config.HTTPKeepAliveInterval,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: config.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     config.HTTPMaxConnsPerHost,
		IdleConnTimeout:     config.HTTPIdleConnTimeout,

		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   config.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: config.HTTPResponseHeaderTimeout,

		ForceAttemptHTTP2: true,
		TLSClientConfig: &tls.Config{
			ClientSessionCache: tls.NewLRUClientSessionCache(64),
			MinVersion:         tls.VersionTLS12,
		},
	}

	return &http.Client{Transport: transport}
}
