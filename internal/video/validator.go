package video

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/siteaudit/internal/config"
	"github.com/John-Robertt/siteaudit/internal/domain"
)

// Options 控制视频阶段的并发、限速与上限。
type Options struct {
	Concurrency   int
	RatePerSecond float64
	// Timeout 是单个查询（含重试退避）的上限。
	Timeout time.Duration
	// MaxVideos 限制本次最多查询的不同 ID 数；0 表示不限制。
	MaxVideos int
}

// Result 是视频阶段的产出。
type Result struct {
	Issues  []domain.Issue
	Checked int // 已得到结果的不同 ID 数（含黑名单）
	Skipped int // 因取消或 MaxVideos 未查询的不同 ID 数
	Partial bool
}

// Validator 对“页面 -> 视频”引用做主题校验。
type Validator struct {
	tax   *config.Taxonomy
	cache *Cache
	opts  Options
	log   *zap.Logger

	// OnChecked 在每个 ID 得到结果后调用（可为 nil；可能并发调用）。
	OnChecked func(id string)
}

func NewValidator(tax *config.Taxonomy, c *Cache, opts Options, log *zap.Logger) *Validator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = config.DefaultVideoRate
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultVideoTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{tax: tax, cache: c, opts: opts, log: log}
}

// Validate 校验全部引用。
//
// 规则：
// - 黑名单最先检查：直接判为 denylisted，不发起任何网络请求
// - 不同 ID 并发查询（有界 + 限速）；同一 ID 通过 Cache 串行化
// - ctx 取消后不再发起新查询；在途查询使用独立的超时 ctx 完成；未开始的 ID 计为 skipped
func (v *Validator) Validate(ctx context.Context, refs []domain.VideoRef) Result {
	refs = dedupRefs(refs)

	var res Result
	denied := map[string]struct{}{}
	var pending []string
	seen := map[string]struct{}{}
	for _, r := range refs {
		if _, ok := seen[r.VideoID]; ok {
			continue
		}
		seen[r.VideoID] = struct{}{}
		if _, ok := v.tax.Denied(r.VideoID); ok {
			denied[r.VideoID] = struct{}{}
			continue
		}
		pending = append(pending, r.VideoID)
	}
	sort.Strings(pending)
	res.Checked = len(denied)

	if v.opts.MaxVideos > 0 && len(pending) > v.opts.MaxVideos {
		res.Skipped += len(pending) - v.opts.MaxVideos
		res.Partial = true
		pending = pending[:v.opts.MaxVideos]
	}

	results := v.lookupAll(ctx, pending, &res)

	for _, r := range refs {
		if _, ok := denied[r.VideoID]; ok {
			d, _ := v.tax.Denied(r.VideoID)
			res.Issues = append(res.Issues, issue(r, domain.ReasonDenylisted, fmt.Sprintf("视频 %s 在黑名单中：%s", r.VideoID, d.Reason), nil))
			continue
		}
		m, ok := results[r.VideoID]
		if !ok {
			continue
		}
		if it, bad := v.judge(r, m); bad {
			res.Issues = append(res.Issues, it)
		}
	}
	domain.SortIssues(res.Issues)
	return res
}

func (v *Validator) lookupAll(ctx context.Context, ids []string, res *Result) map[string]domain.VideoMetadata {
	var (
		mu      sync.Mutex
		results = make(map[string]domain.VideoMetadata, len(ids))
		skipped int
	)
	limiter := rate.NewLimiter(rate.Limit(v.opts.RatePerSecond), 1)

	var g errgroup.Group
	g.SetLimit(v.opts.Concurrency)
	for i, id := range ids {
		if ctx.Err() != nil {
			mu.Lock()
			skipped += len(ids) - i
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			// 在途查询不随 ctx 取消，只受单次超时约束。
			lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.opts.Timeout)
			defer cancel()
			m := v.cache.Get(lctx, id)

			mu.Lock()
			results[id] = m
			mu.Unlock()
			if v.OnChecked != nil {
				v.OnChecked(id)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Checked += len(results)
	res.Skipped += skipped
	if skipped > 0 {
		res.Partial = true
		v.log.Warn("视频检查被中断，剩余视频未查询", zap.Int("skipped", skipped))
	}
	return results
}

func (v *Validator) judge(r domain.VideoRef, m domain.VideoMetadata) (domain.Issue, bool) {
	switch m.State {
	case domain.FetchNotFound:
		return issue(r, domain.ReasonNotFound, fmt.Sprintf("视频 %s 不存在或已不可用", r.VideoID), &m), true
	case domain.FetchError:
		reason := m.Reason
		if reason == "" {
			reason = domain.ReasonFetchError
		}
		msg := fmt.Sprintf("视频 %s 元数据查询失败", r.VideoID)
		if reason == domain.ReasonMaxRetries {
			msg = fmt.Sprintf("视频 %s 元数据查询重试次数用尽", r.VideoID)
		}
		return issue(r, reason, msg, &m), true
	}

	subject := SubjectForPage(r.Page, v.tax)
	if subject.Empty() {
		// 页面路径无法推导主题（例如首页），不做主题比对。
		return domain.Issue{}, false
	}
	verdict := Judge(subject, m.Title, v.tax)
	if verdict.Valid {
		return domain.Issue{}, false
	}
	it := issue(r, verdict.Reason, verdict.Message, &m)
	it.Video.Subject = subject.Name
	it.Video.Category = verdict.Category
	return it, true
}

func issue(r domain.VideoRef, reason, msg string, m *domain.VideoMetadata) domain.Issue {
	f := &domain.VideoFinding{VideoID: r.VideoID, Reason: reason}
	if m != nil {
		f.Title = m.Title
		f.Author = m.AuthorName
	}
	return domain.Issue{
		File:     r.Page,
		Category: domain.CategoryVideoMismatch,
		Type:     reason,
		Severity: domain.SeverityWarning,
		Message:  msg,
		Target:   r.VideoID,
		Video:    f,
	}
}

func dedupRefs(refs []domain.VideoRef) []domain.VideoRef {
	out := make([]domain.VideoRef, 0, len(refs))
	seen := map[domain.VideoRef]struct{}{}
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].VideoID < out[j].VideoID
	})
	return out
}
