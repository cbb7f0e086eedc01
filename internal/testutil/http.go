// Package testutil 提供测试辅助工具
package testutil

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"
)

// RewriteTransport 把发往指定主机的请求重定向到测试服务器
// hosts 为空时重写所有请求
type RewriteTransport struct {
	base  *url.URL
	hosts []string
	next  http.RoundTripper

	// Requests 记录经过的请求（重写前的 URL）
	Requests []*http.Request
}

// NewRewriteTransport 创建重定向 Transport
func NewRewriteTransport(baseURL string, hosts ...string) *RewriteTransport {
	u, _ := url.Parse(baseURL)
	return &RewriteTransport{
		base:  u,
		hosts: hosts,
		next:  http.DefaultTransport,
	}
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.Requests = append(t.Requests, req)
	if t.shouldRewrite(req) {
		cloned := req.Clone(req.Context())
		u := *req.URL
		u.Scheme = t.base.Scheme
		u.Host = t.base.Host
		cloned.URL = &u
		cloned.Host = t.base.Host
		req = cloned
	}
	return t.next.RoundTrip(req)
}

func (t *RewriteTransport) shouldRewrite(req *http.Request) bool {
	if len(t.hosts) == 0 {
		return true
	}
	for _, host := range t.hosts {
		if req.URL.Host == host {
			return true
		}
	}
	return false
}

// NewTestClient 创建测试用 HTTP 客户端，请求被重定向到 ts
func NewTestClient(ts *httptest.Server, hosts ...string) *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: NewRewriteTransport(ts.URL, hosts...),
	}
}

// DecodeNDJSON 解析换行分隔的 JSON 流
func DecodeNDJSON(r io.Reader) ([]map[string]any, error) {
	var out []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, scanner.Err()
}
