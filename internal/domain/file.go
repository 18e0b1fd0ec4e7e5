package domain

import (
	"path"
	"strings"
)

// FileKind 是文件的类型分类（由扩展名决定）。
type FileKind string

const (
	KindHTML   FileKind = "html"
	KindJSON   FileKind = "json"
	KindScript FileKind = "script"
	KindStyle  FileKind = "style"
	KindOther  FileKind = "other"
)

// FileRecord 描述一次扫描得到的站点文件。
//
// 不变量（实现必须遵守）：
// - RelPath 使用 '/' 分隔，且相对于站点根目录（不以 '/' 开头）
// - AbsPath 必须是 clean + absolute
// - 创建后不可变，生命周期为一次 audit
type FileRecord struct {
	RelPath string
	AbsPath string
	Kind    FileKind
	Size    int64
}

// KindForPath 按扩展名（大小写不敏感）推断文件类型。
func KindForPath(p string) FileKind {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return KindHTML
	case ".json", ".webmanifest":
		return KindJSON
	case ".js", ".mjs", ".cjs":
		return KindScript
	case ".css":
		return KindStyle
	default:
		return KindOther
	}
}

// Extractable 表示该类型的文件是否需要做引用抽取。
func (k FileKind) Extractable() bool {
	switch k {
	case KindHTML, KindJSON, KindScript, KindStyle:
		return true
	default:
		return false
	}
}
