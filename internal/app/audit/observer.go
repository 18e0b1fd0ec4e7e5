package audit

import (
	"time"

	"github.com/John-Robertt/siteaudit/internal/config"
)

// Observer 用于把“运行进度/阶段/文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - audit 包只负责发事件，不做任何输出（避免污染 stdout 的摘要/JSON）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 Execute 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileDone 在某个文件分析完成时调用。
	OnFileDone(idx, total int, rel string, findings int, dur time.Duration)
	// OnVideoChecked 在某个视频 ID 得到结果时调用（可能并发）。
	OnVideoChecked(done, total int, id string)
}

// 阶段名（OnPhaseDone 的 name），顺序即执行顺序。
const (
	PhaseCollect = "collect"
	PhaseAnalyze = "analyze"
	PhaseResolve = "resolve"
	PhaseOrphans = "orphans"
	PhaseVideos  = "videos"
	PhaseReport  = "report"
)
