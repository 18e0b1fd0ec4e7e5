package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// Page 是一次解析得到的 HTML 文档，extract 与 lint 共享同一份解析结果（只读）。
type Page struct {
	Path   string
	Source []byte
	Doc    *goquery.Document
	JSONLD []JSONLDBlock

	loc *locator
}

// JSONLDBlock 是 <script type="application/ld+json"> 块。
type JSONLDBlock struct {
	Index int // 文档内序号（0-based）
	Line  int
	Text  string
	Data  any   // 解析成功时的值
	Err   error // 解析失败原因；nil 表示合法
}

// ParseHTML 解析 HTML 源文件。非 UTF-8 文本或解析器错误视为不可解析。
func ParseHTML(rel string, src []byte) (*Page, error) {
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("不是合法的 UTF-8 文本")
	}
	if bytes.IndexByte(src, 0) >= 0 {
		return nil, fmt.Errorf("包含 NUL 字节（疑似二进制文件）")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	p := &Page{Path: rel, Source: src, Doc: doc, loc: newLocator(src)}
	ldOffsets := jsonLDTagOffsets(src)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		t, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(t), "application/ld+json") {
			return
		}
		text := s.Text()
		b := JSONLDBlock{Index: len(p.JSONLD), Text: text}
		if b.Index < len(ldOffsets) {
			b.Line = p.loc.lineAt(ldOffsets[b.Index])
		}
		b.Data, b.Err = decodeJSON([]byte(text))
		p.JSONLD = append(p.JSONLD, b)
	})
	return p, nil
}

// Line 返回 value 在源文件中首次出现的行号（0 表示未知）。
func (p *Page) Line(value string) int {
	if p == nil || p.loc == nil {
		return 0
	}
	return p.loc.find(value)
}

// HTML 抽取页面中的全部站内引用（属性、srcset、内联样式、JSON-LD）。
func HTML(p *Page, sections Sections) []domain.RawReference {
	if p == nil || p.Doc == nil {
		return nil
	}
	var out []domain.RawReference
	add := func(v string, class domain.RefClass, origin domain.RefOrigin) {
		v = strings.TrimSpace(v)
		if Skip(v) {
			return
		}
		out = append(out, domain.RawReference{
			SourceFile: p.Path,
			Value:      v,
			Class:      class,
			Origin:     origin,
			Line:       p.loc.find(v),
		})
	}

	for _, n := range p.Doc.Find("*").Nodes {
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "href":
				if class, ok := hrefClass(n); ok {
					add(a.Val, class, domain.OriginAttribute)
				}
			case "src":
				if class, ok := srcClass(n); ok {
					add(a.Val, class, domain.OriginAttribute)
				}
			case "srcset":
				if n.DataAtom == atom.Img || n.DataAtom == atom.Source {
					add(firstSrcsetCandidate(a.Val), domain.RefImage, domain.OriginSrcset)
				}
			case "poster":
				if n.DataAtom == atom.Video {
					add(a.Val, domain.RefImage, domain.OriginAttribute)
				}
			case "data":
				if n.DataAtom == atom.Object {
					add(a.Val, domain.RefSource, domain.OriginAttribute)
				}
			case "content":
				if n.DataAtom == atom.Meta && isImageMeta(n) {
					add(a.Val, domain.RefImage, domain.OriginAttribute)
				}
			case "style":
				out = append(out, styleRefs(p.Path, []byte(a.Val), domain.RefImage, p.loc, 0)...)
			}
		}
		if n.DataAtom == atom.Style {
			out = append(out, styleRefs(p.Path, []byte(nodeText(n)), domain.RefImage, p.loc, 0)...)
		}
	}

	for _, b := range p.JSONLD {
		if b.Err != nil {
			continue
		}
		out = append(out, structuredRefs(p.Path, b.Data, sections, domain.OriginJSONLD, p.loc)...)
	}
	return out
}

func hrefClass(n *html.Node) (domain.RefClass, bool) {
	switch n.DataAtom {
	case atom.A, atom.Area:
		return domain.RefLink, true
	case atom.Link:
		rel := strings.ToLower(attr(n, "rel"))
		switch {
		case hasToken(rel, "stylesheet"):
			return domain.RefStylesheet, true
		case hasToken(rel, "icon"), hasToken(rel, "apple-touch-icon"):
			return domain.RefImage, true
		case hasToken(rel, "preconnect"), hasToken(rel, "dns-prefetch"):
			return "", false
		default:
			return domain.RefLink, true
		}
	default:
		return "", false
	}
}

func srcClass(n *html.Node) (domain.RefClass, bool) {
	switch n.DataAtom {
	case atom.Img:
		return domain.RefImage, true
	case atom.Input:
		if strings.EqualFold(attr(n, "type"), "image") {
			return domain.RefImage, true
		}
		return "", false
	case atom.Script:
		return domain.RefScript, true
	case atom.Iframe, atom.Video, atom.Audio, atom.Source, atom.Track, atom.Embed:
		return domain.RefSource, true
	default:
		return "", false
	}
}

func isImageMeta(n *html.Node) bool {
	key := strings.ToLower(attr(n, "property"))
	if key == "" {
		key = strings.ToLower(attr(n, "name"))
	}
	return key == "og:image" || key == "twitter:image"
}

// firstSrcsetCandidate 返回 srcset 的第一个候选 URL（去掉宽度/密度描述符）。
func firstSrcsetCandidate(v string) string {
	first := strings.TrimSpace(strings.SplitN(v, ",", 2)[0])
	if f := strings.Fields(first); len(f) > 0 {
		return f[0]
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// jsonLDTagOffsets 按文档顺序返回每个 ld+json <script> 开始标签的偏移。
// 注释与 script 内容被跳过，其中出现的同名字符串不计入。
func jsonLDTagOffsets(src []byte) []int {
	low := asciiLower(src)
	var out []int
	for off := 0; off < len(low); {
		i := bytes.IndexByte(low[off:], '<')
		if i < 0 {
			break
		}
		at := off + i
		rest := low[at:]
		switch {
		case bytes.HasPrefix(rest, []byte("<!--")):
			e := bytes.Index(rest[4:], []byte("-->"))
			if e < 0 {
				return out
			}
			off = at + 4 + e + 3
		case bytes.HasPrefix(rest, []byte("<script")) && len(rest) > 7 && isTagBoundary(rest[7]):
			gt := bytes.IndexByte(rest, '>')
			if gt < 0 {
				return out
			}
			if bytes.Contains(rest[:gt], []byte("application/ld+json")) {
				out = append(out, at)
			}
			e := bytes.Index(rest[gt:], []byte("</script"))
			if e < 0 {
				return out
			}
			off = at + gt + e + len("</script")
		default:
			off = at + 1
		}
	}
	return out
}

// asciiLower 只折叠 ASCII 字母，保证偏移与 src 一致。
func asciiLower(src []byte) []byte {
	out := make([]byte, len(src))
	for i, c := range src {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func isTagBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '/', '>':
		return true
	}
	return false
}
