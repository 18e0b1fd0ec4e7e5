package domain

import (
	"sort"
	"time"
)

// 视频检查阶段的完成度（写入 report.videoCheck）。
const (
	VideoCheckComplete = "complete"
	VideoCheckSkipped  = "skipped"
	VideoCheckPartial  = "partial"
)

// Report 是对外稳定输出（--json-out）的结构。
//
// 约束：字段名与形状跨 run 稳定（便于 diff）；数组永远不是 null。
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Root        string    `json:"root"`
	Partial     bool      `json:"partial"`
	VideoCheck  string    `json:"videoCheck"`

	FilesAudited FileCounts    `json:"filesAudited"`
	Summary      ReportSummary `json:"summary"`

	BrokenLinks    []Issue  `json:"brokenLinks"`
	JSONBrokenRefs []Issue  `json:"jsonBrokenRefs"`
	LintIssues     []Issue  `json:"lintIssues"`
	OrphanFiles    []string `json:"orphanFiles"`
	EdgeCases      []Issue  `json:"edgeCases"`
	VideoIssues    []Issue  `json:"videoIssues"`
}

type FileCounts struct {
	HTML   int `json:"html"`
	JSON   int `json:"json"`
	Script int `json:"script"`
	Style  int `json:"style"`
	Other  int `json:"other"`
	Total  int `json:"total"`
}

// Add 按类型计数一个文件。
func (c *FileCounts) Add(k FileKind) {
	switch k {
	case KindHTML:
		c.HTML++
	case KindJSON:
		c.JSON++
	case KindScript:
		c.Script++
	case KindStyle:
		c.Style++
	default:
		c.Other++
	}
	c.Total++
}

type ReportSummary struct {
	BrokenLinks    int `json:"brokenLinks"`
	JSONBrokenRefs int `json:"jsonBrokenRefs"`
	LintIssues     int `json:"lintIssues"`
	LintErrors     int `json:"lintErrors"`
	OrphanFiles    int `json:"orphanFiles"`
	EdgeCases      int `json:"edgeCases"`
	VideoIssues    int `json:"videoIssues"`
	VideosChecked  int `json:"videosChecked"`
	VideosSkipped  int `json:"videosSkipped"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) 所有数组稳定排序（file, type, target, line, message），nil 变为空数组
// 3) summary 由数组计算得出
func (r *Report) Finalize() {
	r.GeneratedAt = r.GeneratedAt.UTC()

	for _, xs := range []*[]Issue{&r.BrokenLinks, &r.JSONBrokenRefs, &r.LintIssues, &r.EdgeCases, &r.VideoIssues} {
		if *xs == nil {
			*xs = []Issue{}
		}
		SortIssues(*xs)
	}
	if r.OrphanFiles == nil {
		r.OrphanFiles = []string{}
	}
	sort.Strings(r.OrphanFiles)

	s := ReportSummary{
		BrokenLinks:    len(r.BrokenLinks),
		JSONBrokenRefs: len(r.JSONBrokenRefs),
		LintIssues:     len(r.LintIssues),
		OrphanFiles:    len(r.OrphanFiles),
		EdgeCases:      len(r.EdgeCases),
		VideoIssues:    len(r.VideoIssues),
		VideosChecked:  r.Summary.VideosChecked,
		VideosSkipped:  r.Summary.VideosSkipped,
	}
	for _, it := range r.LintIssues {
		if it.Severity == SeverityError {
			s.LintErrors++
		}
	}
	r.Summary = s
}

// Failed 表示报告中存在会导致非零退出码的问题。
// orphan 与 video mismatch 只是提示，不参与判断。
func (r Report) Failed() bool {
	return r.Summary.BrokenLinks > 0 || r.Summary.JSONBrokenRefs > 0 || r.Summary.LintErrors > 0
}

// SortIssues 按 (file, type, target, line, message) 稳定排序。
func SortIssues(xs []Issue) {
	sort.SliceStable(xs, func(i, j int) bool {
		a, b := xs[i], xs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Message < b.Message
	})
}
