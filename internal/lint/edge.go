package lint

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/extract"
)

var placeholderPhrases = []string{"lorem ipsum", "dolor sit amet", "placeholder text", "insert text here", "your text here", "[placeholder]"}

func checkLongLines(e *Engine, p *extract.Page) []domain.Issue {
	n, first := 0, 0
	for i, line := range bytes.Split(p.Source, []byte("\n")) {
		if len(bytes.TrimRight(line, "\r")) > e.opts.MaxLineLength {
			n++
			if first == 0 {
				first = i + 1
			}
		}
	}
	if n == 0 {
		return nil
	}
	it := edgeIssue(p, TypeLongLines, fmt.Sprintf("%d 行超过 %d 个字符", n, e.opts.MaxLineLength))
	it.Count = n
	it.Line = first
	return []domain.Issue{it}
}

// checkMixedContent 统计以 http:// 加载的子资源（普通 <a> 链接不算）。
func checkMixedContent(_ *Engine, p *extract.Page) []domain.Issue {
	var targets []string
	for _, n := range p.Doc.Find("*").Nodes {
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			if !loadsResource(n, a.Key) {
				continue
			}
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "http://") {
				targets = append(targets, strings.TrimSpace(a.Val))
			}
		}
	}
	if len(targets) == 0 {
		return nil
	}
	it := edgeIssue(p, TypeMixedContent, fmt.Sprintf("%d 个子资源通过不安全的 http:// 加载", len(targets)))
	it.Count = len(targets)
	it.Target = targets[0]
	it.Line = p.Line(targets[0])
	return []domain.Issue{it}
}

func loadsResource(n *html.Node, key string) bool {
	switch key {
	case "src":
		switch n.DataAtom {
		case atom.Img, atom.Script, atom.Iframe, atom.Source, atom.Video, atom.Audio, atom.Embed, atom.Track, atom.Input:
			return true
		}
	case "href":
		if n.DataAtom == atom.Link {
			for _, a := range n.Attr {
				if a.Key == "rel" && strings.Contains(strings.ToLower(a.Val), "stylesheet") {
					return true
				}
			}
		}
	case "srcset", "poster":
		return true
	case "data":
		return n.DataAtom == atom.Object
	}
	return false
}

func checkDuplicateIDs(_ *Engine, p *extract.Page) []domain.Issue {
	counts := map[string]int{}
	p.Doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if id = strings.TrimSpace(id); id != "" {
			counts[id]++
		}
	})
	ids := make([]string, 0)
	for id, n := range counts {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]domain.Issue, 0, len(ids))
	for _, id := range ids {
		it := edgeIssue(p, TypeDuplicateIDs, fmt.Sprintf("id=%q 出现了 %d 次", id, counts[id]))
		it.Target = id
		it.Count = counts[id]
		out = append(out, it)
	}
	return out
}

func checkViewport(_ *Engine, p *extract.Page) []domain.Issue {
	found := false
	p.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		found = strings.EqualFold(strings.TrimSpace(name), "viewport")
		return !found
	})
	if found {
		return nil
	}
	return []domain.Issue{edgeIssue(p, TypeMissingViewport, "缺少 <meta name=\"viewport\">")}
}

func checkForms(_ *Engine, p *extract.Page) []domain.Issue {
	n := 0
	p.Doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		if strings.TrimSpace(action) == "" {
			n++
		}
	})
	if n == 0 {
		return nil
	}
	it := edgeIssue(p, TypeFormWithoutAction, fmt.Sprintf("%d 个 <form> 没有 action", n))
	it.Count = n
	return []domain.Issue{it}
}

// checkHeadScripts 统计 <head> 中同步加载（无 async/defer、非 module）的外部脚本。
func checkHeadScripts(e *Engine, p *extract.Page) []domain.Issue {
	n := 0
	p.Doc.Find("head script[src]").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("async"); ok {
			return
		}
		if _, ok := s.Attr("defer"); ok {
			return
		}
		if t, _ := s.Attr("type"); strings.EqualFold(strings.TrimSpace(t), "module") {
			return
		}
		n++
	})
	if n <= e.opts.MaxHeadScripts {
		return nil
	}
	it := edgeIssue(p, TypeRenderBlockingScripts,
		fmt.Sprintf("<head> 中有 %d 个阻塞渲染的脚本（阈值 %d）", n, e.opts.MaxHeadScripts))
	it.Count = n
	return []domain.Issue{it}
}

func checkPlaceholderText(e *Engine, p *extract.Page) []domain.Issue {
	text := []byte(strings.ToLower(visibleText(p.Doc)))
	found := e.placeholder.find(text)
	if len(found) == 0 {
		return nil
	}
	it := edgeIssue(p, TypePlaceholderText, "页面残留占位文本："+strings.Join(found, ", "))
	it.Count = e.placeholder.count(text)
	return []domain.Issue{it}
}

// visibleText 拼接 <body> 中的文本节点（跳过 script/style/template）。
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return b.String()
}
