package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/siteaudit/internal/config"
	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/extract"
	"github.com/John-Robertt/siteaudit/internal/infra/cache"
	"github.com/John-Robertt/siteaudit/internal/infra/httpx"
	"github.com/John-Robertt/siteaudit/internal/lint"
	"github.com/John-Robertt/siteaudit/internal/report"
	"github.com/John-Robertt/siteaudit/internal/resolve"
	"github.com/John-Robertt/siteaudit/internal/scan"
	"github.com/John-Robertt/siteaudit/internal/track"
	"github.com/John-Robertt/siteaudit/internal/video"
)

// broken 引用的 Issue.Type。
const (
	TypeMissingTarget = "missing_target"
	TypeOutsideRoot   = "outside_root"
)

// Deps 是一次 audit 的可替换依赖；零值可用。
type Deps struct {
	Log      *zap.Logger
	Observer Observer
	// VideoSource 为 nil 时按配置构造 oEmbed 客户端。
	VideoSource video.Source
	// Now 为 nil 时使用 time.Now。
	Now func() time.Time
}

// Execute 执行一次 audit 并返回报告。
//
// 只有致命错误（根目录不可用）才返回 error；单个文件/引用/视频的问题一律降级为 Issue。
// ctx 取消后不再开始新的文件或视频任务，已完成部分照常出报告（partial=true）。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) (domain.Report, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	obs := deps.Observer
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	started := now()

	if obs != nil {
		obs.OnStart(eff)
	}

	// collect
	phaseStarted := time.Now()
	col, err := scan.Collect(eff.Root, scan.Rules{Exclude: eff.Exclude, Ignore: eff.Ignore})
	if err != nil {
		return domain.Report{}, err
	}
	for _, d := range col.Unreadable {
		log.Warn("目录不可读，已跳过", zap.String("dir", d))
	}
	files := col.Files
	var counts domain.FileCounts
	for _, f := range files {
		counts.Add(f.Kind)
	}
	log.Info("collect 完成", zap.Int("files", len(files)), zap.Int("html", counts.HTML), zap.Int("unreadable", len(col.Unreadable)))
	if obs != nil {
		obs.OnPhaseDone(PhaseCollect, map[string]any{
			"files":      len(files),
			"html":       counts.HTML,
			"unreadable": len(col.Unreadable),
		}, time.Since(phaseStarted))
	}

	// analyze
	phaseStarted = time.Now()
	var blocked []string
	if eff.Taxonomy != nil {
		blocked = eff.Taxonomy.DeniedIDs()
	}
	an := &analyzer{
		sections: extract.SectionsOf(files),
		engine: lint.New(lint.Options{
			MaxLineLength:   eff.Lint.MaxLineLength,
			MaxInlineStyles: eff.Lint.MaxInlineStyles,
			MaxHeadScripts:  eff.Lint.MaxHeadScripts,
			BlockedVideoIDs: blocked,
		}),
	}
	slots := analyzeAll(ctx, eff.Concurrency, files, an, obs)

	var issues []domain.Issue
	var videoRefs []domain.VideoRef
	analyzed, refCount := 0, 0
	for i := range slots {
		if !slots[i].done {
			continue
		}
		analyzed++
		refCount += len(slots[i].refs)
		issues = append(issues, slots[i].issues...)
		videoRefs = append(videoRefs, slots[i].videos...)
	}
	partial := analyzed < len(files)
	log.Info("analyze 完成", zap.Int("analyzed", analyzed), zap.Int("refs", refCount), zap.Int("videos", len(videoRefs)))
	if obs != nil {
		obs.OnPhaseDone(PhaseAnalyze, map[string]any{
			"analyzed": analyzed,
			"refs":     refCount,
			"issues":   len(issues),
		}, time.Since(phaseStarted))
	}

	// resolve：按文件顺序串行，tracker 与 issue 顺序都确定。
	phaseStarted = time.Now()
	inv := resolve.NewInventory(files)
	res := resolve.New(inv)
	tracker := track.New()
	broken := 0
	for i := range slots {
		seen := map[string]struct{}{}
		for _, raw := range slots[i].refs {
			rr := res.Resolve(raw)
			tracker.Mark(rr)
			if rr.Exists {
				continue
			}
			key := fmt.Sprintf("%d\x00%s", raw.Line, raw.Value)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			issues = append(issues, brokenIssue(rr))
			broken++
		}
	}
	log.Info("resolve 完成", zap.Int("referenced", tracker.Len()), zap.Int("broken", broken))
	if obs != nil {
		obs.OnPhaseDone(PhaseResolve, map[string]any{
			"referenced": tracker.Len(),
			"broken":     broken,
		}, time.Since(phaseStarted))
	}

	// orphans：analyze 未完整时被引用集合也不完整，不报 orphan，避免误报。
	phaseStarted = time.Now()
	orphans := []string{}
	if !partial {
		orphans = tracker.Orphans(files, track.NewPolicy(eff.OrphanExempt))
	}
	log.Info("orphans 完成", zap.Int("orphans", len(orphans)))
	if obs != nil {
		obs.OnPhaseDone(PhaseOrphans, map[string]any{"orphans": len(orphans)}, time.Since(phaseStarted))
	}

	// videos
	phaseStarted = time.Now()
	videoCheck := domain.VideoCheckSkipped
	var vres video.Result
	if !eff.Video.Skip {
		videoCheck = domain.VideoCheckComplete
		vres = validateVideos(ctx, eff, deps.VideoSource, videoRefs, log, obs)
		issues = append(issues, vres.Issues...)
		if vres.Partial {
			videoCheck = domain.VideoCheckPartial
			partial = true
		}
	}
	log.Info("videos 完成", zap.String("check", videoCheck), zap.Int("checked", vres.Checked), zap.Int("skipped", vres.Skipped))
	if obs != nil {
		obs.OnPhaseDone(PhaseVideos, map[string]any{
			"check":   videoCheck,
			"checked": vres.Checked,
			"skipped": vres.Skipped,
			"issues":  len(vres.Issues),
		}, time.Since(phaseStarted))
	}

	// report
	phaseStarted = time.Now()
	if ctx.Err() != nil {
		partial = true
	}
	r := report.Build(report.Input{
		GeneratedAt:   started,
		Root:          eff.Root,
		Files:         files,
		Issues:        issues,
		Orphans:       orphans,
		VideoCheck:    videoCheck,
		VideosChecked: vres.Checked,
		VideosSkipped: vres.Skipped,
		Partial:       partial,
	})
	if obs != nil {
		obs.OnPhaseDone(PhaseReport, map[string]any{
			"broken_links":     r.Summary.BrokenLinks,
			"json_broken_refs": r.Summary.JSONBrokenRefs,
			"lint_errors":      r.Summary.LintErrors,
			"partial":          r.Partial,
		}, time.Since(phaseStarted))
	}
	return r, nil
}

// analyzeAll 用 worker pool 并发分析文件；结果经 channel 由单个收集者写入对应槽位。
func analyzeAll(ctx context.Context, workers int, files []domain.FileRecord, an *analyzer, obs Observer) []fileResult {
	if workers < 1 {
		workers = 1
	}

	type job struct {
		idx int
		f   domain.FileRecord
	}
	type result struct {
		idx int
		res fileResult
		dur time.Duration
	}

	jobs := make(chan job)
	results := make(chan result, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				oneStarted := time.Now()
				r := an.analyzeFile(ctx, j.f)
				results <- result{idx: j.idx, res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for i, f := range files {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- job{idx: i, f: f}:
			case <-ctx.Done():
				return
			}
		}
	}()

	slots := make([]fileResult, len(files))
	done := 0
	for r := range results {
		done++
		slots[r.idx] = r.res
		if obs != nil {
			obs.OnFileDone(done, len(files), files[r.idx].RelPath, r.res.findings(), r.dur)
		}
	}
	return slots
}

func validateVideos(ctx context.Context, eff config.EffectiveConfig, src video.Source, refs []domain.VideoRef, log *zap.Logger, obs Observer) video.Result {
	if src == nil {
		client := httpx.NewClient(eff.Video.Timeout, httpx.RetryPolicy{
			MaxRetries:  eff.Video.MaxRetries,
			BaseBackoff: eff.Video.BaseBackoff,
			MaxBackoff:  eff.Video.MaxBackoff,
		})
		src = &video.OEmbedClient{HTTP: client, Endpoint: eff.Video.Endpoint}
	}
	var disk *cache.Store
	if eff.Video.CacheDir != "" {
		s := cache.New(eff.Video.CacheDir, false)
		disk = &s
	}

	v := video.NewValidator(eff.Taxonomy, video.NewCache(src, disk, log), video.Options{
		Concurrency:   eff.Video.Concurrency,
		RatePerSecond: eff.Video.RatePerSecond,
		Timeout:       eff.Video.Timeout,
		MaxVideos:     eff.Video.MaxVideos,
	}, log)
	if obs != nil {
		total := distinctIDs(refs)
		var mu sync.Mutex
		done := 0
		v.OnChecked = func(id string) {
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			obs.OnVideoChecked(n, total, id)
		}
	}
	return v.Validate(ctx, refs)
}

func distinctIDs(refs []domain.VideoRef) int {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.VideoID)
	}
	sort.Strings(ids)
	n := 0
	for i := range ids {
		if i == 0 || ids[i] != ids[i-1] {
			n++
		}
	}
	return n
}

func brokenIssue(rr domain.ResolvedReference) domain.Issue {
	raw := rr.Raw
	it := domain.Issue{
		File:     raw.SourceFile,
		Category: domain.CategoryBrokenLink,
		Type:     TypeMissingTarget,
		Severity: domain.SeverityError,
		Target:   raw.Value,
		Line:     raw.Line,
	}
	if raw.IsStructuredData() {
		it.Category = domain.CategoryBrokenJSONRef
	}
	if rr.Variant == domain.VariantOutsideRoot {
		it.Type = TypeOutsideRoot
		it.Message = fmt.Sprintf("%s 引用越过站点根目录：%s", raw.Class, raw.Value)
		return it
	}
	it.Message = fmt.Sprintf("%s 引用的目标不存在：%s", raw.Class, rr.ResolvedPath)
	return it
}
