// Package httpx 提供带有界重试的 HTTP client。
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// UserAgent 是所有外部请求使用的 UA。
const UserAgent = "siteaudit/1.0 (+static-site integrity auditor)"

// RetryPolicy 描述一次请求的重试策略，可注入 Sleep 以便测试（fake clock）。
type RetryPolicy struct {
	// MaxRetries 表示最大重试次数（不含首次尝试）。例如 3 表示最多 4 次尝试。
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Retryable 判断一次尝试的结果是否应重试；nil 使用 DefaultRetryable。
	Retryable func(resp *http.Response, err error) bool
	// Sleep 等待 d 或 ctx 结束；nil 使用真实计时器。
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryable：网络错误、429、5xx 可重试；其它状态码（含 404）不重试。
func DefaultRetryable(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

// Backoff 返回第 attempt 次重试（从 1 开始）前的等待时间：base * 2^(attempt-1)，不超过 MaxBackoff。
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseBackoff <= 0 || attempt <= 0 {
		return 0
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) retryable(resp *http.Response, err error) bool {
	if p.Retryable != nil {
		return p.Retryable(resp, err)
	}
	return DefaultRetryable(resp, err)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryExhaustedError 表示重试次数用尽后仍然失败。
type RetryExhaustedError struct {
	Attempts   int
	StatusCode int // 最后一次的状态码；0 表示网络错误
	Err        error
}

func (e *RetryExhaustedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("重试 %d 次后仍失败：HTTP %d", e.Attempts-1, e.StatusCode)
	}
	return fmt.Sprintf("重试 %d 次后仍失败：%v", e.Attempts-1, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Transport 把“固定 UA + 有界重试 + 指数退避”固化为统一策略。
type Transport struct {
	Base   http.RoundTripper
	Policy RetryPolicy
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.Policy.MaxRetries
	if max < 0 || !canRetry {
		max = 0
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", UserAgent)
		}

		resp, err := base.RoundTrip(r)
		if ctx.Err() != nil {
			// ctx 已取消：不再重试，直接返回（更可解释）。
			if resp != nil {
				drain(resp)
			}
			return nil, ctx.Err()
		}
		if !t.Policy.retryable(resp, err) {
			return resp, err
		}
		if attempt >= max {
			status := 0
			if resp != nil {
				status = resp.StatusCode
				drain(resp)
			}
			if err == nil {
				err = fmt.Errorf("HTTP %d", status)
			}
			return nil, &RetryExhaustedError{Attempts: attempt + 1, StatusCode: status, Err: err}
		}

		wait := t.Policy.Backoff(attempt + 1)
		if resp != nil {
			if ra := retryAfter(resp); ra > wait {
				wait = ra
				if t.Policy.MaxBackoff > 0 && wait > t.Policy.MaxBackoff {
					wait = t.Policy.MaxBackoff
				}
			}
			drain(resp)
		}
		if err := t.Policy.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// drain 读尽并关闭 body，让连接可以复用。
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// retryAfter 解析 Retry-After（仅支持秒数形式）。
func retryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// NewClient 构造带重试策略的 HTTP client；timeout 是单次尝试等待响应头的上限。
// 整体超时由调用方通过 ctx 控制。
func NewClient(timeout time.Duration, policy RetryPolicy) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
	}
	return &http.Client{
		Transport: &Transport{Base: base, Policy: policy},
	}
}
