package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/infra/httpx"
)

// Source 是视频元数据来源。
//
// 约束：
// - Lookup 不做缓存（缓存由 Cache 统一实现）；重试由 HTTP client 的 transport 负责
// - 返回的 VideoMetadata.State 总是有效；error 仅用于日志，State=error 时非 nil
type Source interface {
	Lookup(ctx context.Context, id string) (domain.VideoMetadata, error)
}

// HTTPStatusError 表示元数据端点返回了非 2xx 的状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// OEmbedClient 通过 oEmbed 端点查询视频标题与作者。只有视频 ID 会离开本机。
type OEmbedClient struct {
	HTTP *http.Client
	// Endpoint 是带 {id} 占位符的 URL 模板。
	Endpoint string
}

type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

const maxBodyBytes = 1 << 20

func (c *OEmbedClient) Lookup(ctx context.Context, id string) (domain.VideoMetadata, error) {
	meta := domain.VideoMetadata{VideoID: id}
	u := strings.ReplaceAll(c.Endpoint, "{id}", url.QueryEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return failed(meta, domain.ReasonFetchError), err
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		var re *httpx.RetryExhaustedError
		if errors.As(err, &re) {
			return failed(meta, domain.ReasonMaxRetries), err
		}
		return failed(meta, domain.ReasonFetchError), err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		// 视频不存在/已下架/不可嵌入：确定性结果，不重试。
		meta.State = domain.FetchNotFound
		meta.Reason = domain.ReasonNotFound
		return meta, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return failed(meta, domain.ReasonFetchError), &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}

	var body oembedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return failed(meta, domain.ReasonFetchError), fmt.Errorf("解析 oEmbed 响应失败：%w", err)
	}
	meta.State = domain.FetchOK
	meta.Title = strings.TrimSpace(body.Title)
	meta.AuthorName = strings.TrimSpace(body.AuthorName)
	return meta, nil
}

func failed(meta domain.VideoMetadata, reason string) domain.VideoMetadata {
	meta.State = domain.FetchError
	meta.Reason = reason
	return meta
}
