package video

import (
	"path"
	"strings"
	"unicode"

	"github.com/John-Robertt/siteaudit/internal/config"
)

// Subject 是页面声明的主题（由页面路径推导）。
type Subject struct {
	Name  string // 归一化后的完整主题，例如 "ship x"
	Short string // 首个非通用词（长度 >= 3）；可能为空
}

// Empty 表示无法从路径推导主题（例如站点首页）。
func (s Subject) Empty() bool { return s.Name == "" }

// SubjectForPage 从页面路径推导主题：取文件名（去扩展名）；index 页面取父目录名。
func SubjectForPage(rel string, tax *config.Taxonomy) Subject {
	base := path.Base(rel)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if strings.EqualFold(stem, "index") {
		dir := path.Dir(rel)
		if dir == "." || dir == "/" {
			return Subject{}
		}
		stem = path.Base(dir)
	}

	name := Normalize(stem)
	s := Subject{Name: name}
	for _, w := range strings.Fields(name) {
		if len(w) >= 3 && !tax.IsGeneric(w) {
			s.Short = w
			break
		}
	}
	if s.Short == name {
		s.Short = ""
	}
	return s
}

// MentionedIn 判断主题（或其短形式）是否以完整词的形式出现在已归一化的标题中。
func (s Subject) MentionedIn(normTitle string) bool {
	if s.Empty() {
		return false
	}
	if containsPhrase(normTitle, s.Name) {
		return true
	}
	return s.Short != "" && containsPhrase(normTitle, s.Short)
}

// Normalize 小写化，并把非字母数字字符折叠为单个空格。
func Normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func containsPhrase(hay, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+hay+" ", " "+phrase+" ")
}
