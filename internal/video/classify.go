package video

import (
	"fmt"

	"github.com/John-Robertt/siteaudit/internal/config"
	"github.com/John-Robertt/siteaudit/internal/domain"
)

// Classify 按分类表顺序匹配标题，返回第一个命中的类别。
func Classify(title string, tax *config.Taxonomy) (config.VideoCategory, bool) {
	if tax == nil {
		return config.VideoCategory{}, false
	}
	norm := Normalize(title)
	for _, c := range tax.Categories {
		for _, kw := range c.Keywords {
			if containsPhrase(norm, Normalize(kw)) {
				return c, true
			}
		}
	}
	return config.VideoCategory{}, false
}

// Verdict 是一次主题校验的结论。
type Verdict struct {
	Valid    bool
	Category string
	Reason   string
	Message  string
}

// Judge 判断视频标题是否与页面主题相符：
// - 标题提到主题（或短形式）：有效，无论类别
// - 未提到主题但命中 general 类别：有效
// - 否则：subject_not_mentioned
func Judge(subject Subject, title string, tax *config.Taxonomy) Verdict {
	cat, ok := Classify(title, tax)
	v := Verdict{}
	if ok {
		v.Category = cat.Name
	}
	if subject.MentionedIn(Normalize(title)) {
		v.Valid = true
		return v
	}
	if ok && cat.General {
		v.Valid = true
		return v
	}

	v.Reason = domain.ReasonSubjectNotMentioned
	if ok {
		v.Message = fmt.Sprintf("视频标题 %q 未提及页面主题 %q（识别为类别 %s，但主题缺失）", title, subject.Name, cat.Name)
	} else {
		v.Message = fmt.Sprintf("视频标题 %q 未提及页面主题 %q，且未识别出通用类别", title, subject.Name)
	}
	return v
}
