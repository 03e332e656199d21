package server

import (
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/archive-hub/internal/config"
	"github.com/any-hub/archive-hub/internal/logging"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 为单个 Hub 构建带重试的 http.Client。
// UpstreamTimeout 只约束等待响应头；归档体的读取由 FetchTimeout 的 context 兜底。
// 重试耗尽后原样返回最后一个响应，交给 fetch 包按状态码分类。
func NewUpstreamClient(cfg *config.Config, route *HubRoute, logger *logrus.Logger) *http.Client {
	timeout := 30 * time.Second
	retries := 3
	backoff := time.Second
	if cfg != nil {
		if cfg.Global.UpstreamTimeout.DurationValue() > 0 {
			timeout = cfg.Global.UpstreamTimeout.DurationValue()
		}
		if cfg.Global.MaxRetries >= 0 {
			retries = cfg.Global.MaxRetries
		}
		if cfg.Global.InitialBackoff.DurationValue() > 0 {
			backoff = cfg.Global.InitialBackoff.DurationValue()
		}
	}

	transport := defaultTransport.Clone()
	transport.ResponseHeaderTimeout = timeout
	fields := logrus.Fields{"action": "upstream_retry"}
	if route != nil {
		fields["hub"] = route.Config.Name
		if route.ProxyURL != nil {
			transport.Proxy = http.ProxyURL(route.ProxyURL)
		}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	client := &retryablehttp.Client{
		HTTPClient:   &http.Client{Transport: transport},
		Logger:       logging.RetryLogger(logger, fields),
		RetryWaitMin: backoff,
		RetryWaitMax: 8 * backoff,
		RetryMax:     retries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return client.StandardClient()
}
