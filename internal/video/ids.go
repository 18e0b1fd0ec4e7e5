// Package video 校验页面嵌入的外部视频是否仍与页面主题相符。
package video

import (
	"regexp"
)

// 嵌入 URL 形式：youtube(-nocookie).com/embed/、watch?v=、shorts/、v/、youtu.be/。
var embedRE = regexp.MustCompile(`(?i)(?:youtube(?:-nocookie)?\.com/(?:embed/|watch\?(?:[^"'\s<>]*&(?:amp;)?)?v=|shorts/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`)

// 属性/脚本形式：data-video-id="..."、videoid="..."、videoId: '...'。
var attrRE = regexp.MustCompile(`(?i)(?:data-video-id|videoid)["']?\s*[:=]\s*["']([A-Za-z0-9_-]{11})["']`)

// FindIDs 返回源文件中出现的视频 ID（按首次出现顺序去重）。
func FindIDs(src []byte) []string {
	type hit struct {
		off int
		id  string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{embedRE, attrRE} {
		for _, m := range re.FindAllSubmatchIndex(src, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			hits = append(hits, hit{off: m[2], id: string(src[m[2]:m[3]])})
		}
	}
	// 两个正则各自有序；按偏移合并保证“首次出现”语义。
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].off < hits[j-1].off; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.id]; ok {
			continue
		}
		seen[h.id] = struct{}{}
		out = append(out, h.id)
	}
	return out
}
