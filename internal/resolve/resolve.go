// Package resolve 把原始引用解析为 inventory 中的具体文件或确认缺失。
package resolve

import (
	"net/url"
	"path"
	"strings"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// Inventory 是只读的文件清单索引（RelPath 集合）。
type Inventory struct {
	files map[string]domain.FileRecord
}

// NewInventory 基于 collector 的输出构建索引。
func NewInventory(files []domain.FileRecord) *Inventory {
	m := make(map[string]domain.FileRecord, len(files))
	for _, f := range files {
		m[f.RelPath] = f
	}
	return &Inventory{files: m}
}

// Has 判断 rel 是否是 inventory 中的文件。
func (inv *Inventory) Has(rel string) bool {
	if inv == nil {
		return false
	}
	_, ok := inv.files[rel]
	return ok
}

// Len 返回文件数。
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.files)
}

// Resolver 对引用做归一化与三候选解析。无状态，可并发使用。
type Resolver struct {
	inv *Inventory
}

func New(inv *Inventory) *Resolver {
	return &Resolver{inv: inv}
}

// Resolve 解析一个原始引用。
//
// 步骤：
// 1) 去掉 query 与 fragment，百分号解码
// 2) '/' 开头相对站点根，否则相对引用文件所在目录
// 3) 归一化 '.' 与 '..'；越过根目录得到 outside_root
// 4) 依次尝试 exact、+".html"、+"/index.html"，首个存在者胜出
func (r *Resolver) Resolve(raw domain.RawReference) domain.ResolvedReference {
	out := domain.ResolvedReference{Raw: raw, Variant: domain.VariantNone}

	p, ok := Normalize(raw.SourceFile, raw.Value)
	if !ok {
		out.Variant = domain.VariantOutsideRoot
		return out
	}

	for _, c := range Candidates(p) {
		if r.inv.Has(c.Path) {
			out.ResolvedPath = c.Path
			out.Exists = true
			out.Variant = c.Variant
			return out
		}
	}
	out.ResolvedPath = p
	return out
}

// Candidate 是一种候选形式。
type Candidate struct {
	Path    string
	Variant domain.ResolutionVariant
}

// Candidates 返回 p（已归一化，"" 表示站点根）的候选形式，按优先级排序。
func Candidates(p string) []Candidate {
	if p == "" {
		return []Candidate{{Path: "index.html", Variant: domain.VariantDirectoryIndex}}
	}
	if strings.HasSuffix(p, "/") {
		return []Candidate{{Path: p + "index.html", Variant: domain.VariantDirectoryIndex}}
	}
	return []Candidate{
		{Path: p, Variant: domain.VariantExact},
		{Path: p + ".html", Variant: domain.VariantHTMLSuffix},
		{Path: p + "/index.html", Variant: domain.VariantDirectoryIndex},
	}
}

// Normalize 把 value 归一化为相对站点根的路径（不以 '/' 开头；目录形式保留末尾 '/'）。
// 第二个返回值为 false 表示路径越过了站点根。
func Normalize(sourceFile, value string) (string, bool) {
	v := strings.TrimSpace(value)
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	if dec, err := url.PathUnescape(v); err == nil {
		v = dec
	}
	v = strings.ReplaceAll(v, "\\", "/")

	var joined string
	if strings.HasPrefix(v, "/") {
		joined = v
	} else {
		joined = path.Dir(sourceFile) + "/" + v
	}
	dirStyle := strings.HasSuffix(v, "/") || v == "" || strings.HasSuffix(v, "/.") || strings.HasSuffix(v, "/..") || v == "." || v == ".."

	var stack []string
	for _, seg := range strings.Split(joined, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}
	p := strings.Join(stack, "/")
	if dirStyle && p != "" {
		p += "/"
	}
	return p, true
}
