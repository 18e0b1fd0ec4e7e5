package lint

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/extract"
)

var debugMarkers = []string{"console.log(", "console.debug(", "debugger;", "alert("}

var todoMarkers = []string{"TODO", "FIXME", "XXX:"}

// 已废弃的 HTML 元素（按标签名）。
var deprecatedTags = []string{"acronym", "applet", "basefont", "big", "blink", "center", "font", "frame", "frameset", "marquee", "strike", "tt"}

func checkDoctype(_ *Engine, p *extract.Page) []domain.Issue {
	for _, root := range p.Doc.Nodes {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.DoctypeNode {
				return nil
			}
		}
	}
	return []domain.Issue{lintIssue(p, TypeMissingDoctype, domain.SeverityWarning, "缺少 <!DOCTYPE html> 声明")}
}

func checkLang(_ *Engine, p *extract.Page) []domain.Issue {
	lang, _ := p.Doc.Find("html").First().Attr("lang")
	if strings.TrimSpace(lang) != "" {
		return nil
	}
	return []domain.Issue{lintIssue(p, TypeMissingLang, domain.SeverityWarning, "<html> 缺少 lang 属性")}
}

func checkTitle(_ *Engine, p *extract.Page) []domain.Issue {
	if strings.TrimSpace(p.Doc.Find("title").First().Text()) != "" {
		return nil
	}
	return []domain.Issue{lintIssue(p, TypeMissingTitle, domain.SeverityWarning, "缺少 <title> 或标题为空")}
}

func checkMetaDescription(_ *Engine, p *extract.Page) []domain.Issue {
	found := false
	p.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		content, _ := s.Attr("content")
		found = strings.TrimSpace(content) != ""
		return false
	})
	if found {
		return nil
	}
	return []domain.Issue{lintIssue(p, TypeMissingMetaDescription, domain.SeverityWarning, "缺少 meta description 或内容为空")}
}

func checkMultipleH1(_ *Engine, p *extract.Page) []domain.Issue {
	n := p.Doc.Find("h1").Length()
	if n <= 1 {
		return nil
	}
	it := lintIssue(p, TypeMultipleH1, domain.SeverityWarning, fmt.Sprintf("存在 %d 个 <h1>（应只有一个）", n))
	it.Count = n
	return []domain.Issue{it}
}

func checkMissingAlt(_ *Engine, p *extract.Page) []domain.Issue {
	n := 0
	p.Doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, ok := s.Attr("alt")
		if !ok || strings.TrimSpace(alt) == "" {
			n++
		}
	})
	if n == 0 {
		return nil
	}
	it := lintIssue(p, TypeMissingAlt, domain.SeverityWarning, fmt.Sprintf("%d 张图片缺少 alt 或 alt 为空", n))
	it.Count = n
	return []domain.Issue{it}
}

func checkInlineStyles(e *Engine, p *extract.Page) []domain.Issue {
	n := p.Doc.Find("[style]").Length()
	if n <= e.opts.MaxInlineStyles {
		return nil
	}
	it := lintIssue(p, TypeExcessiveInlineStyles, domain.SeverityWarning,
		fmt.Sprintf("内联 style 属性过多：%d（阈值 %d）", n, e.opts.MaxInlineStyles))
	it.Count = n
	return []domain.Issue{it}
}

func checkDebugStatements(e *Engine, p *extract.Page) []domain.Issue {
	var b strings.Builder
	p.Doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); ok || isJSONLD(s) {
			return
		}
		b.WriteString(s.Text())
		b.WriteByte('\n')
	})
	code := []byte(b.String())
	found := e.debug.find(code)
	if len(found) == 0 {
		return nil
	}
	it := lintIssue(p, TypeDebugStatements, domain.SeverityWarning,
		"内联脚本包含调试语句："+strings.Join(found, ", "))
	it.Count = e.debug.count(code)
	it.Line = p.Line(found[0])
	return []domain.Issue{it}
}

func checkTodoMarkers(e *Engine, p *extract.Page) []domain.Issue {
	found := e.todo.find(p.Source)
	if len(found) == 0 {
		return nil
	}
	it := lintIssue(p, TypeTodoMarkers, domain.SeverityWarning, "存在未处理的标记："+strings.Join(found, ", "))
	it.Count = e.todo.count(p.Source)
	it.Line = p.Line(found[0])
	return []domain.Issue{it}
}

func checkDeprecatedMarkup(_ *Engine, p *extract.Page) []domain.Issue {
	counts := map[string]int{}
	for _, n := range p.Doc.Find("*").Nodes {
		if n.Type != html.ElementNode {
			continue
		}
		for _, tag := range deprecatedTags {
			if n.Data == tag {
				counts[tag]++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}
	tags := make([]string, 0, len(counts))
	total := 0
	for tag, n := range counts {
		tags = append(tags, "<"+tag+">")
		total += n
	}
	sort.Strings(tags)
	it := lintIssue(p, TypeDeprecatedMarkup, domain.SeverityWarning, "使用了已废弃的元素："+strings.Join(tags, ", "))
	it.Count = total
	return []domain.Issue{it}
}

// checkBlockedVideoIDs 在原始源码中查找黑名单视频 ID；命中即为硬错误。
// 只认完整 token：更长标识符中的子串不算命中。
func checkBlockedVideoIDs(e *Engine, p *extract.Page) []domain.Issue {
	var out []domain.Issue
	for _, id := range e.blocked.find(p.Source) {
		at := tokenIndex(p.Source, id)
		if at < 0 {
			continue
		}
		it := lintIssue(p, TypeBlockedVideoID, domain.SeverityError, "页面嵌入了被禁止的视频 ID："+id)
		it.Target = id
		it.Line = bytes.Count(p.Source[:at], []byte("\n")) + 1
		out = append(out, it)
	}
	return out
}

// tokenIndex 返回 tok 在 src 中第一次以完整 token 出现的位置，没有则返回 -1。
func tokenIndex(src []byte, tok string) int {
	for off := 0; ; {
		i := bytes.Index(src[off:], []byte(tok))
		if i < 0 {
			return -1
		}
		at := off + i
		end := at + len(tok)
		if (at == 0 || !isIDByte(src[at-1])) && (end == len(src) || !isIDByte(src[end])) {
			return at
		}
		off = at + 1
	}
}

// isIDByte 对应视频 ID 的字符集 [A-Za-z0-9_-]。
func isIDByte(c byte) bool {
	return c == '_' || c == '-' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// checkJSONLD 每个无法解析的 JSON-LD 块产生一条 issue。
func checkJSONLD(_ *Engine, p *extract.Page) []domain.Issue {
	var out []domain.Issue
	for _, b := range p.JSONLD {
		if b.Err == nil {
			continue
		}
		it := lintIssue(p, TypeInvalidJSONLD, domain.SeverityError,
			fmt.Sprintf("第 %d 个 JSON-LD 块无法解析：%v", b.Index+1, b.Err))
		it.Line = b.Line
		out = append(out, it)
	}
	return out
}

func isJSONLD(s *goquery.Selection) bool {
	t, _ := s.Attr("type")
	return strings.EqualFold(strings.TrimSpace(t), "application/ld+json")
}
