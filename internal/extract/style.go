package extract

import (
	"bytes"
	"strings"
	"sync"

	"github.com/coregx/coregex"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

var (
	styleMu sync.Mutex
	// coregex 不支持 (?i)，大小写写成字符类。
	urlRE    = mustCompile(`[uU][rR][lL]\(\s*(?:"[^"]*"|'[^']*'|[^)'"\s]*)\s*\)`)
	importRE = mustCompile(`@[iI][mM][pP][oO][rR][tT]\s+(?:"[^"]*"|'[^']*')`)
)

// Style 抽取 CSS 中的 url(...) 与 @import "..." 引用。
func Style(rel string, src []byte) []domain.RawReference {
	return styleRefs(rel, src, domain.RefImage, newLocator(src), 0)
}

// styleRefs 供 <style> 块与 style 属性复用；baseLine 是片段在宿主文件中的起始行（0 表示按 loc 查找）。
func styleRefs(rel string, src []byte, class domain.RefClass, loc *locator, baseLine int) []domain.RawReference {
	if len(src) == 0 {
		return nil
	}

	styleMu.Lock()
	urls := urlRE.FindAll(src, -1)
	imports := importRE.FindAll(src, -1)
	styleMu.Unlock()

	var out []domain.RawReference
	add := func(m []byte, value string, c domain.RefClass) {
		if Skip(value) {
			return
		}
		line := baseLine
		if line == 0 && loc != nil {
			line = loc.find(string(m))
		}
		out = append(out, domain.RawReference{
			SourceFile: rel,
			Value:      value,
			Class:      c,
			Origin:     domain.OriginStyle,
			Line:       line,
		})
	}

	for _, m := range urls {
		add(m, unquote(trimURL(m)), class)
	}
	for _, m := range imports {
		// "@import url(...)" 已被上面的 url() 覆盖；这里只处理字符串形式。
		v := bytes.TrimSpace(m[len("@import"):])
		add(m, unquote(string(v)), domain.RefStylesheet)
	}
	return out
}

func mustCompile(expr string) *coregex.Regexp {
	re, err := coregex.Compile(expr)
	if err != nil {
		panic("extract: 编译正则失败：" + err.Error())
	}
	return re
}

func trimURL(m []byte) string {
	s := string(m)
	s = s[len("url(") : len(s)-1]
	return strings.TrimSpace(s)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
