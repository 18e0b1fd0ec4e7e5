// Package lint 对每个 HTML 文档执行一组相互独立的结构检查。
//
// 每个检查单独运行：一个检查 panic 只产生一条 check_failed 诊断，不影响其它检查。
package lint

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/extract"
)

// 检查类型（Issue.Type）。
const (
	TypeMissingDoctype         = "missing_doctype"
	TypeMissingLang            = "missing_lang"
	TypeMissingTitle           = "missing_title"
	TypeMissingMetaDescription = "missing_meta_description"
	TypeMultipleH1             = "multiple_h1"
	TypeMissingAlt             = "missing_alt"
	TypeExcessiveInlineStyles  = "excessive_inline_styles"
	TypeDebugStatements        = "debug_statements"
	TypeTodoMarkers            = "todo_markers"
	TypeDeprecatedMarkup       = "deprecated_markup"
	TypeBlockedVideoID         = "blocked_video_id"
	TypeInvalidJSONLD          = "invalid_jsonld"
	TypeUnparseable            = "unparseable"
	TypeCheckFailed            = "check_failed"

	TypeLongLines             = "long_lines"
	TypeMixedContent          = "mixed_content"
	TypeDuplicateIDs          = "duplicate_ids"
	TypeMissingViewport       = "missing_viewport"
	TypeFormWithoutAction     = "form_without_action"
	TypeRenderBlockingScripts = "render_blocking_scripts"
	TypePlaceholderText       = "placeholder_text"
)

// Options 是检查阈值与黑名单（加载后只读）。
type Options struct {
	MaxLineLength   int
	MaxInlineStyles int
	MaxHeadScripts  int
	// BlockedVideoIDs 是禁止出现在任何页面中的视频 ID。
	BlockedVideoIDs []string
}

// Engine 持有编译好的匹配器，可被多个 worker 并发使用。
type Engine struct {
	opts        Options
	blocked     *dict
	debug       *dict
	todo        *dict
	placeholder *dict
	checks      []check
}

type check struct {
	name string
	run  func(e *Engine, p *extract.Page) []domain.Issue
}

func New(opts Options) *Engine {
	e := &Engine{
		opts:        opts,
		blocked:     newDict(opts.BlockedVideoIDs),
		debug:       newDict(debugMarkers),
		todo:        newDict(todoMarkers),
		placeholder: newDict(placeholderPhrases),
	}
	e.checks = []check{
		{TypeMissingDoctype, checkDoctype},
		{TypeMissingLang, checkLang},
		{TypeMissingTitle, checkTitle},
		{TypeMissingMetaDescription, checkMetaDescription},
		{TypeMultipleH1, checkMultipleH1},
		{TypeMissingAlt, checkMissingAlt},
		{TypeExcessiveInlineStyles, checkInlineStyles},
		{TypeDebugStatements, checkDebugStatements},
		{TypeTodoMarkers, checkTodoMarkers},
		{TypeDeprecatedMarkup, checkDeprecatedMarkup},
		{TypeBlockedVideoID, checkBlockedVideoIDs},
		{TypeInvalidJSONLD, checkJSONLD},

		{TypeLongLines, checkLongLines},
		{TypeMixedContent, checkMixedContent},
		{TypeDuplicateIDs, checkDuplicateIDs},
		{TypeMissingViewport, checkViewport},
		{TypeFormWithoutAction, checkForms},
		{TypeRenderBlockingScripts, checkHeadScripts},
		{TypePlaceholderText, checkPlaceholderText},
	}
	return e
}

// Check 对一个已解析的页面执行全部检查。
func (e *Engine) Check(p *extract.Page) []domain.Issue {
	if p == nil {
		return nil
	}
	var out []domain.Issue
	for _, c := range e.checks {
		out = append(out, e.runOne(c, p)...)
	}
	return out
}

func (e *Engine) runOne(c check, p *extract.Page) (issues []domain.Issue) {
	defer func() {
		if r := recover(); r != nil {
			issues = []domain.Issue{{
				File:     p.Path,
				Category: domain.CategoryLint,
				Type:     TypeCheckFailed,
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("检查 %s 执行失败：%v", c.name, r),
				Target:   c.name,
			}}
		}
	}()
	return c.run(e, p)
}

// Unparseable 构造“文件无法解析”的 lint issue（该文件不再产生其它 lint 结果）。
func Unparseable(rel string, err error) domain.Issue {
	return domain.Issue{
		File:     rel,
		Category: domain.CategoryLint,
		Type:     TypeUnparseable,
		Severity: domain.SeverityError,
		Message:  "无法解析：" + errString(err),
	}
}

// ScriptSyntax 构造脚本语法树含错误节点的提示（抽取仍继续，因此只是 warning）。
func ScriptSyntax(rel string) domain.Issue {
	return domain.Issue{
		File:     rel,
		Category: domain.CategoryLint,
		Type:     TypeUnparseable,
		Severity: domain.SeverityWarning,
		Message:  "脚本存在语法错误，引用抽取可能不完整",
	}
}

func lintIssue(p *extract.Page, typ string, sev domain.Severity, msg string) domain.Issue {
	return domain.Issue{File: p.Path, Category: domain.CategoryLint, Type: typ, Severity: sev, Message: msg}
}

func edgeIssue(p *extract.Page, typ string, msg string) domain.Issue {
	return domain.Issue{File: p.Path, Category: domain.CategoryEdgeCase, Type: typ, Severity: domain.SeverityInfo, Message: msg}
}

func errString(err error) string {
	if err == nil {
		return "未知错误"
	}
	return strings.TrimSpace(err.Error())
}
