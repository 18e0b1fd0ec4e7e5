package domain

// Category 是 Issue 的一级分类（对应报告中的各个数组）。
type Category string

const (
	CategoryBrokenLink    Category = "broken_link"
	CategoryBrokenJSONRef Category = "broken_json_ref"
	CategoryLint          Category = "lint"
	CategoryOrphan        Category = "orphan"
	CategoryEdgeCase      Category = "edge_case"
	CategoryVideoMismatch Category = "video_mismatch"
)

// Categories 是报告中分类的固定展示顺序。
var Categories = []Category{
	CategoryBrokenLink,
	CategoryBrokenJSONRef,
	CategoryLint,
	CategoryOrphan,
	CategoryEdgeCase,
	CategoryVideoMismatch,
}

// Advisory 表示该分类只是提示（启发式，可能误报），不会单独导致非零退出码。
func (c Category) Advisory() bool {
	return c == CategoryOrphan || c == CategoryVideoMismatch
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue 是唯一的对外输出实体；创建后不可修改。
//
// 不变量：File 必须是扫描时 inventory 中存在的 RelPath。
type Issue struct {
	File     string        `json:"file"`
	Category Category      `json:"category"`
	Type     string        `json:"type"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Target   string        `json:"target,omitempty"`
	Line     int           `json:"line,omitempty"`
	Count    int           `json:"count,omitempty"`
	Video    *VideoFinding `json:"video,omitempty"`
}

// Fatal 表示该 issue 会让退出码变为非零。
func (i Issue) Fatal() bool {
	switch i.Category {
	case CategoryBrokenLink, CategoryBrokenJSONRef:
		return true
	case CategoryLint:
		return i.Severity == SeverityError
	default:
		return false
	}
}
