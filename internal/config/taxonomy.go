package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Taxonomy 是视频标题分类表、通用词与视频 id 黑名单。
// 启动时加载一次，之后只读。
type Taxonomy struct {
	GenericWords []string        `yaml:"generic_words"`
	Categories   []VideoCategory `yaml:"categories"`
	Denylist     []DeniedVideo   `yaml:"denylist"`

	denied  map[string]DeniedVideo
	generic map[string]struct{}
}

// VideoCategory 是一个标题类别及其关键词。
type VideoCategory struct {
	Name     string   `yaml:"name"`
	General  bool     `yaml:"general"`
	Keywords []string `yaml:"keywords"`
}

// DeniedVideo 是禁止出现在站点中的视频 id。
type DeniedVideo struct {
	ID     string `yaml:"id"`
	Reason string `yaml:"reason"`
}

// LoadTaxonomy 读取分类表；path 为空时使用内置默认表。
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data := defaultTaxonomy
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取 taxonomy 失败：%w", err)
		}
		data = b
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy 解析并校验 YAML 格式的分类表。
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("解析 taxonomy 失败：%w", err)
	}

	seen := make(map[string]struct{}, len(t.Categories))
	for i := range t.Categories {
		c := &t.Categories[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("taxonomy 第 %d 个类别缺少 name", i+1)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("taxonomy 类别重复：%q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("taxonomy 类别 %q 没有关键词", c.Name)
		}
	}

	t.denied = make(map[string]DeniedVideo, len(t.Denylist))
	for _, d := range t.Denylist {
		if !videoIDRE.MatchString(d.ID) {
			return nil, fmt.Errorf("denylist 中的视频 id 非法：%q", d.ID)
		}
		t.denied[d.ID] = d
	}

	t.generic = make(map[string]struct{}, len(t.GenericWords))
	for _, w := range t.GenericWords {
		t.generic[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &t, nil
}

// Denied 返回 id 是否在黑名单中。
func (t *Taxonomy) Denied(id string) (DeniedVideo, bool) {
	if t == nil {
		return DeniedVideo{}, false
	}
	d, ok := t.denied[id]
	return d, ok
}

// DeniedIDs 返回黑名单中的全部 id（保持配置顺序）。
func (t *Taxonomy) DeniedIDs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.Denylist))
	for _, d := range t.Denylist {
		out = append(out, d.ID)
	}
	return out
}

// IsGeneric 表示 word（小写）是否是不能代表主题的通用词。
func (t *Taxonomy) IsGeneric(word string) bool {
	if t == nil {
		return false
	}
	_, ok := t.generic[word]
	return ok
}
