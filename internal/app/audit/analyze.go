package audit

import (
	"context"
	"os"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/extract"
	"github.com/John-Robertt/siteaudit/internal/lint"
	"github.com/John-Robertt/siteaudit/internal/video"
)

// fileResult 是单个文件的分析产出；每个文件一个槽位，由收集 goroutine 写入。
type fileResult struct {
	done   bool
	refs   []domain.RawReference
	issues []domain.Issue
	videos []domain.VideoRef
}

func (r fileResult) findings() int { return len(r.issues) }

type analyzer struct {
	sections extract.Sections
	engine   *lint.Engine
}

// analyzeFile 读取并分析单个文件。任何失败都降级为该文件的 issue，不影响其他文件。
// ctx 取消时返回未完成的槽位，而不是 issue。
func (a *analyzer) analyzeFile(ctx context.Context, f domain.FileRecord) fileResult {
	if ctx.Err() != nil {
		return fileResult{}
	}
	out := fileResult{done: true}
	if !f.Kind.Extractable() {
		return out
	}

	src, err := os.ReadFile(f.AbsPath)
	if err != nil {
		out.issues = append(out.issues, lint.Unparseable(f.RelPath, err))
		return out
	}

	switch f.Kind {
	case domain.KindHTML:
		p, err := extract.ParseHTML(f.RelPath, src)
		if err != nil {
			// 无法解析：只报一条，不再产生其它发现。
			out.issues = append(out.issues, lint.Unparseable(f.RelPath, err))
			return out
		}
		out.refs = extract.HTML(p, a.sections)
		out.issues = a.engine.Check(p)
		for _, id := range video.FindIDs(src) {
			out.videos = append(out.videos, domain.VideoRef{Page: f.RelPath, VideoID: id})
		}
	case domain.KindJSON:
		refs, err := extract.JSON(f.RelPath, src, a.sections)
		if err != nil {
			out.issues = append(out.issues, lint.Unparseable(f.RelPath, err))
			return out
		}
		out.refs = refs
	case domain.KindScript:
		res, err := extract.Script(ctx, f.RelPath, src, a.sections)
		if err != nil {
			if ctx.Err() != nil {
				return fileResult{}
			}
			out.issues = append(out.issues, lint.Unparseable(f.RelPath, err))
			return out
		}
		out.refs = res.Refs
		if res.SyntaxError {
			out.issues = append(out.issues, lint.ScriptSyntax(f.RelPath))
		}
	case domain.KindStyle:
		out.refs = extract.Style(f.RelPath, src)
	}
	return out
}
