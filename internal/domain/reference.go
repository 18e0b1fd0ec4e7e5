package domain

// RefClass 是引用的语义类别（来自哪种标签/语法），用于报告与诊断，解析逻辑对所有类别一视同仁。
type RefClass string

const (
	RefLink       RefClass = "link"
	RefImage      RefClass = "image"
	RefScript     RefClass = "script"
	RefStylesheet RefClass = "stylesheet"
	RefSource     RefClass = "source"
)

// RefOrigin 记录引用是从哪种语法位置抽取出来的。
type RefOrigin string

const (
	OriginAttribute RefOrigin = "attribute"
	OriginSrcset    RefOrigin = "srcset"
	OriginJSONLD    RefOrigin = "jsonld"
	OriginJSON      RefOrigin = "json"
	OriginScript    RefOrigin = "script"
	OriginStyle     RefOrigin = "style"
)

// RawReference 是从源文件中抽取出的原始引用（未做任何归一化）。
type RawReference struct {
	SourceFile string // 引用所在文件的 RelPath
	Value      string
	Class      RefClass
	Origin     RefOrigin
	Line       int // 1-based；0 表示未知
}

// IsStructuredData 表示该引用来自 JSON 文档或 JSON-LD 块（报告中归入 broken_json_ref）。
func (r RawReference) IsStructuredData() bool {
	return r.Origin == OriginJSON || r.Origin == OriginJSONLD
}

// ResolutionVariant 记录三种候选形式中命中的那一种。
type ResolutionVariant string

const (
	VariantExact          ResolutionVariant = "exact"
	VariantHTMLSuffix     ResolutionVariant = "html_suffix"
	VariantDirectoryIndex ResolutionVariant = "directory_index"
	VariantNone           ResolutionVariant = "none"
	VariantOutsideRoot    ResolutionVariant = "outside_root"
)

// ResolvedReference 是 resolver 的输出。
//
// 不变量：Exists==true 时 ResolvedPath 必须是 inventory 中某个 FileRecord.RelPath。
type ResolvedReference struct {
	Raw          RawReference
	ResolvedPath string // Exists=false 时为首个候选（exact 形式）或空
	Exists       bool
	Variant      ResolutionVariant
}
