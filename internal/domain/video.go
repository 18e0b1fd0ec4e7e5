package domain

// FetchState 是一次视频元数据查询的结果状态。
type FetchState string

const (
	FetchOK       FetchState = "ok"
	FetchNotFound FetchState = "not_found"
	FetchError    FetchState = "error"
)

// 视频校验失败的原因（写入 Issue.Type 与 VideoFinding.Reason）。
const (
	ReasonDenylisted          = "denylisted"
	ReasonNotFound            = "not_found"
	ReasonMaxRetries          = "max_retries"
	ReasonFetchError          = "fetch_error"
	ReasonSubjectNotMentioned = "subject_not_mentioned"
)

// VideoMetadata 是 oEmbed 风格的元数据。
// 每次 run 内按 VideoID 缓存，首次查询时创建，之后只读共享。
type VideoMetadata struct {
	VideoID    string     `json:"video_id"`
	Title      string     `json:"title"`
	AuthorName string     `json:"author_name"`
	State      FetchState `json:"state"`
	// Reason 仅在 State=error 时有意义：max_retries / fetch_error。
	Reason string `json:"reason,omitempty"`
}

// VideoRef 描述某个页面嵌入了某个视频。
type VideoRef struct {
	Page    string // 页面 RelPath
	VideoID string
}

// VideoFinding 是视频类 Issue 的附加信息。
type VideoFinding struct {
	VideoID  string `json:"videoId"`
	Subject  string `json:"subject,omitempty"`
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason"`
}
