package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// JSON 解析一个 JSON 文档并抽取其中路径形状的字符串值。
// 解析失败返回 error（调用方记录为 unparseable，不影响其它文件）。
func JSON(rel string, src []byte, sections Sections) ([]domain.RawReference, error) {
	v, err := decodeJSON(src)
	if err != nil {
		return nil, err
	}
	return structuredRefs(rel, v, sections, domain.OriginJSON, newLocator(src)), nil
}

func decodeJSON(src []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// 只允许单个顶层值。
	if dec.More() {
		return nil, fmt.Errorf("顶层值之后存在多余内容")
	}
	return v, nil
}

func structuredRefs(rel string, v any, sections Sections, origin domain.RefOrigin, loc *locator) []domain.RawReference {
	var out []domain.RawReference
	walkStrings(v, func(s string) {
		if !structuredPathLike(s, sections) {
			return
		}
		out = append(out, domain.RawReference{
			SourceFile: rel,
			Value:      s,
			Class:      classForValue(s),
			Origin:     origin,
			Line:       loc.find(`"` + s + `"`),
		})
	})
	return out
}

// walkStrings 深度优先遍历所有字符串值（对象按 key 排序，保证输出稳定）。
func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case []any:
		for _, x := range t {
			walkStrings(x, fn)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkStrings(t[k], fn)
		}
	}
}

// classForValue 按扩展名给结构化数据中的引用一个语义类别（仅用于报告）。
func classForValue(v string) domain.RefClass {
	switch domain.KindForPath(stripQuery(v)) {
	case domain.KindScript:
		return domain.RefScript
	case domain.KindStyle:
		return domain.RefStylesheet
	case domain.KindHTML:
		return domain.RefLink
	}
	if isImageExt(v) {
		return domain.RefImage
	}
	if HasKnownExtension(v) {
		return domain.RefSource
	}
	return domain.RefLink
}

func isImageExt(v string) bool {
	switch extOf(v) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico":
		return true
	}
	return false
}
