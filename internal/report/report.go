package report

import (
	"time"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// Input 是一次 audit 结束后交给 Build 的全部素材。
type Input struct {
	GeneratedAt time.Time
	Root        string
	Files       []domain.FileRecord
	Issues      []domain.Issue
	Orphans     []string

	VideoCheck    string
	VideosChecked int
	VideosSkipped int
	// Partial 表示运行被取消或视频检查被截断；视频检查跳过时 Build 也会置位。
	Partial bool
}

// Build 把 issue 按分类归入 Report 的各个数组，并完成排序与 summary 计算。
//
// 纯函数：不做 IO；同样的 Input（除时间外）得到逐字节相同的 JSON。
func Build(in Input) domain.Report {
	r := domain.Report{
		GeneratedAt: in.GeneratedAt,
		Root:        in.Root,
		Partial:     in.Partial,
		VideoCheck:  in.VideoCheck,
	}
	if r.VideoCheck == "" {
		r.VideoCheck = domain.VideoCheckComplete
	}
	if in.Partial && r.VideoCheck == domain.VideoCheckComplete {
		r.VideoCheck = domain.VideoCheckPartial
	}
	// dry pass 同样是不完整的结果。
	if r.VideoCheck == domain.VideoCheckSkipped {
		r.Partial = true
	}

	for _, f := range in.Files {
		r.FilesAudited.Add(f.Kind)
	}

	r.OrphanFiles = append(r.OrphanFiles, in.Orphans...)
	for _, it := range in.Issues {
		switch it.Category {
		case domain.CategoryBrokenLink:
			r.BrokenLinks = append(r.BrokenLinks, it)
		case domain.CategoryBrokenJSONRef:
			r.JSONBrokenRefs = append(r.JSONBrokenRefs, it)
		case domain.CategoryLint:
			r.LintIssues = append(r.LintIssues, it)
		case domain.CategoryEdgeCase:
			r.EdgeCases = append(r.EdgeCases, it)
		case domain.CategoryVideoMismatch:
			r.VideoIssues = append(r.VideoIssues, it)
		case domain.CategoryOrphan:
			r.OrphanFiles = append(r.OrphanFiles, it.File)
		}
	}
	r.OrphanFiles = dedupStrings(r.OrphanFiles)

	r.Summary.VideosChecked = in.VideosChecked
	r.Summary.VideosSkipped = in.VideosSkipped
	r.Finalize()
	return r
}

// IssuesOf 返回某个分类对应的数组（orphan 以外）。
func IssuesOf(r domain.Report, c domain.Category) []domain.Issue {
	switch c {
	case domain.CategoryBrokenLink:
		return r.BrokenLinks
	case domain.CategoryBrokenJSONRef:
		return r.JSONBrokenRefs
	case domain.CategoryLint:
		return r.LintIssues
	case domain.CategoryEdgeCase:
		return r.EdgeCases
	case domain.CategoryVideoMismatch:
		return r.VideoIssues
	case domain.CategoryOrphan:
		out := make([]domain.Issue, 0, len(r.OrphanFiles))
		for _, p := range r.OrphanFiles {
			out = append(out, OrphanIssue(p))
		}
		return out
	default:
		return nil
	}
}

// OrphanIssue 把 orphan 路径包装成 Issue，便于控制台与表格统一展示。
func OrphanIssue(p string) domain.Issue {
	return domain.Issue{
		File:     p,
		Category: domain.CategoryOrphan,
		Type:     "orphan_file",
		Severity: domain.SeverityWarning,
		Message:  "没有任何文件引用该文件",
	}
}

func dedupStrings(xs []string) []string {
	if len(xs) == 0 {
		return xs
	}
	seen := make(map[string]struct{}, len(xs))
	out := xs[:0]
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
