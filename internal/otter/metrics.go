package otter

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the client and the proxy.
var metrics struct {
	LoginRequests    atomic.Int64
	APIRequests      atomic.Int64
	APIErrors        atomic.Int64
	UploadRequests   atomic.Int64
	DownloadRequests atomic.Int64
	SessionsCreated  atomic.Int64
	ProxyRequests    atomic.Int64
	RateLimited      atomic.Int64
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"login_requests":    metrics.LoginRequests.Load(),
		"api_requests":      metrics.APIRequests.Load(),
		"api_errors":        metrics.APIErrors.Load(),
		"upload_requests":   metrics.UploadRequests.Load(),
		"download_requests": metrics.DownloadRequests.Load(),
		"sessions_created":  metrics.SessionsCreated.Load(),
		"proxy_requests":    metrics.ProxyRequests.Load(),
		"rate_limited":      metrics.RateLimited.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"login_requests", "api_requests", "api_errors",
		"upload_requests", "download_requests",
		"sessions_created", "proxy_requests", "rate_limited",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the proxy sub-package.
func IncrSessionsCreated() { metrics.SessionsCreated.Add(1) }
func IncrProxyRequests()   { metrics.ProxyRequests.Add(1) }
func IncrRateLimited()     { metrics.RateLimited.Add(1) }
