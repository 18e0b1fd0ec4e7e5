package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// DefaultMaxDetail 是控制台每个分类最多展示的明细条数。
const DefaultMaxDetail = 10

type ConsoleOptions struct {
	// MaxDetail<=0 时使用 DefaultMaxDetail。
	MaxDetail int
}

// RenderConsole 输出人类可读的摘要：每个分类都有计数（为空时明确写 none），
// 附带按 type 的分布和截断后的明细。完整内容只在 JSON 报告里。
func RenderConsole(w io.Writer, r domain.Report, opts ConsoleOptions) error {
	max := opts.MaxDetail
	if max <= 0 {
		max = DefaultMaxDetail
	}

	var b strings.Builder
	fmt.Fprintf(&b, "站点审计：%s\n", r.Root)
	fc := r.FilesAudited
	fmt.Fprintf(&b, "文件：total=%d html=%d json=%d script=%d style=%d other=%d\n",
		fc.Total, fc.HTML, fc.JSON, fc.Script, fc.Style, fc.Other)
	switch {
	case r.Partial && r.VideoCheck == domain.VideoCheckSkipped:
		b.WriteString("[PARTIAL] 视频检查已跳过，结果不完整\n")
	case r.Partial:
		b.WriteString("[PARTIAL] 运行未完整结束，结果不完整\n")
	}
	switch r.VideoCheck {
	case domain.VideoCheckSkipped:
		b.WriteString("视频检查：已跳过\n")
	default:
		fmt.Fprintf(&b, "视频检查：%s checked=%d skipped=%d\n", r.VideoCheck, r.Summary.VideosChecked, r.Summary.VideosSkipped)
	}

	for _, c := range domain.Categories {
		xs := IssuesOf(r, c)
		b.WriteString("\n")
		if len(xs) == 0 {
			fmt.Fprintf(&b, "%s: none\n", c)
			continue
		}
		fmt.Fprintf(&b, "%s: %d%s\n", c, len(xs), breakdown(xs))
		for i, it := range xs {
			if i >= max {
				fmt.Fprintf(&b, "  ... 另有 %d 条（见 JSON 报告）\n", len(xs)-max)
				break
			}
			b.WriteString("  ")
			b.WriteString(detailLine(it))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if r.Failed() {
		fmt.Fprintf(&b, "结果：FAIL（broken_link=%d broken_json_ref=%d lint_error=%d）\n",
			r.Summary.BrokenLinks, r.Summary.JSONBrokenRefs, r.Summary.LintErrors)
	} else {
		b.WriteString("结果：PASS\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// breakdown 返回 " (type=n, ...)"；只有一种 type 时也输出，便于 grep。
func breakdown(xs []domain.Issue) string {
	counts := map[string]int{}
	for _, it := range xs {
		counts[it.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s=%d", t, counts[t]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func detailLine(it domain.Issue) string {
	loc := it.File
	if it.Line > 0 {
		loc = fmt.Sprintf("%s:%d", it.File, it.Line)
	}
	s := fmt.Sprintf("%s [%s] %s", loc, it.Type, it.Message)
	if it.Target != "" {
		s += " -> " + it.Target
	}
	if it.Count > 1 {
		s += fmt.Sprintf(" (x%d)", it.Count)
	}
	return s
}
