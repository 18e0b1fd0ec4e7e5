// Package extract 从 HTML/JSON/Script/Style 文件中抽取站内路径引用。
//
// 抽取只负责“找出候选值”；归一化与存在性判断由 resolve 负责。
package extract

import (
	"path"
	"strings"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// 模板插值标记：包含这些片段的值不是真实路径。
var placeholderMarkers = []string{"{{", "}}", "${", "<%", "{%"}

// 识别为“文件型路径”的扩展名（小写，含点）。
var knownExtensions = map[string]struct{}{
	".html": {}, ".htm": {}, ".json": {}, ".webmanifest": {}, ".xml": {}, ".txt": {}, ".pdf": {},
	".js": {}, ".mjs": {}, ".cjs": {}, ".css": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".avif": {}, ".svg": {}, ".ico": {},
	".mp4": {}, ".webm": {}, ".mp3": {}, ".ogg": {}, ".vtt": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

// Sections 是站点的顶层目录集合（由 inventory 推导，只读）。
type Sections map[string]struct{}

// SectionsOf 从 inventory 推导顶层目录集合。
func SectionsOf(files []domain.FileRecord) Sections {
	s := Sections{}
	for _, f := range files {
		if i := strings.IndexByte(f.RelPath, '/'); i > 0 {
			s[f.RelPath[:i]] = struct{}{}
		}
	}
	return s
}

// Has 判断 name 是否为顶层目录。nil 安全。
func (s Sections) Has(name string) bool {
	if s == nil || name == "" {
		return false
	}
	_, ok := s[name]
	return ok
}

// Skip 判断一个原始值是否应被跳过：空值、纯 fragment、外部 URL、模板占位符。
func Skip(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(v, "?") {
		return true
	}
	if strings.HasPrefix(v, "//") || hasScheme(v) {
		return true
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

// hasScheme 识别 "scheme:" 前缀（RFC 3986：字母开头，后接字母/数字/+-.）。
// Windows 盘符等单字母前缀不视为 scheme。
func hasScheme(v string) bool {
	i := strings.IndexByte(v, ':')
	if i < 2 {
		return false
	}
	if j := strings.IndexAny(v, "/?#"); j >= 0 && j < i {
		return false
	}
	for k := 0; k < i; k++ {
		c := v[k]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case k > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// HasKnownExtension 判断路径（忽略 query/fragment）是否带有可识别的文件扩展名。
func HasKnownExtension(v string) bool {
	_, ok := knownExtensions[extOf(v)]
	return ok
}

// 结构化数据（JSON / JSON-LD）中的路径形状：'/' 开头，且带可识别扩展名或首段是顶层目录。
func structuredPathLike(v string, sections Sections) bool {
	if !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return false
	}
	if strings.ContainsAny(v, " \t\r\n") || Skip(v) {
		return false
	}
	if HasKnownExtension(v) {
		return true
	}
	return sections.Has(firstSegment(v))
}

// 脚本字符串中的文件型路径：'/'、'./'、'../' 前缀且带扩展名，或以顶层目录开头的绝对路径。
func scriptPathLike(v string, sections Sections) bool {
	if strings.ContainsAny(v, " \t\r\n") || Skip(v) {
		return false
	}
	switch {
	case strings.HasPrefix(v, "./"), strings.HasPrefix(v, "../"):
		return HasKnownExtension(v)
	case strings.HasPrefix(v, "/"):
		return HasKnownExtension(v) || sections.Has(firstSegment(v))
	default:
		return false
	}
}

func firstSegment(v string) string {
	v = strings.TrimPrefix(stripQuery(v), "/")
	if i := strings.IndexByte(v, '/'); i >= 0 {
		return v[:i]
	}
	return v
}

func stripQuery(v string) string {
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		return v[:i]
	}
	return v
}

func extOf(v string) string {
	return strings.ToLower(path.Ext(stripQuery(v)))
}
