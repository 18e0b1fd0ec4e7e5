// Package track 维护一次 audit 的“已被引用文件”集合，并据此判定孤儿文件。
package track

import (
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// Tracker 由一次运行持有；Mark 可并发调用。
type Tracker struct {
	mu         sync.Mutex
	referenced map[string]struct{}
}

func New() *Tracker {
	return &Tracker{referenced: map[string]struct{}{}}
}

// Mark 记录一个解析成功的引用目标。文件对自身的引用不计入。
func (t *Tracker) Mark(r domain.ResolvedReference) {
	if !r.Exists || r.ResolvedPath == "" || r.ResolvedPath == r.Raw.SourceFile {
		return
	}
	t.mu.Lock()
	t.referenced[r.ResolvedPath] = struct{}{}
	t.mu.Unlock()
}

// Referenced 判断 rel 是否被引用过。
func (t *Tracker) Referenced(rel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.referenced[rel]
	return ok
}

// Len 返回被引用的不同文件数。
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.referenced)
}

// Policy 是孤儿豁免策略（gitignore 语法，站点级配置）。
type Policy struct {
	gi *ignore.GitIgnore
}

// NewPolicy 编译豁免模式；空列表表示不豁免任何文件。
func NewPolicy(patterns []string) *Policy {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	if len(lines) == 0 {
		return &Policy{}
	}
	return &Policy{gi: ignore.CompileIgnoreLines(lines...)}
}

// Exempt 判断 rel 是否为入口文件/工具文件（不参与孤儿判定）。nil 安全。
func (p *Policy) Exempt(rel string) bool {
	if p == nil || p.gi == nil {
		return false
	}
	return p.gi.MatchesPath(rel)
}

// Orphans 返回从未被引用且不在豁免列表中的文件（排序）。
// 必须在所有文件（含 Script/Style）的引用都 Mark 之后调用。
func (t *Tracker) Orphans(inventory []domain.FileRecord, policy *Policy) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0)
	for _, f := range inventory {
		if _, ok := t.referenced[f.RelPath]; ok {
			continue
		}
		if policy.Exempt(f.RelPath) {
			continue
		}
		out = append(out, f.RelPath)
	}
	sort.Strings(out)
	return out
}
