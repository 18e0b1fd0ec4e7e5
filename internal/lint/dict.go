package lint

import (
	"bytes"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// dict 是一组固定关键词的多模式匹配器。
// ahocorasick.Matcher.Match 会修改内部状态，不能并发调用，因此用 mu 串行化。
type dict struct {
	mu    sync.Mutex
	words []string
	m     *ahocorasick.Matcher
}

func newDict(words []string) *dict {
	d := &dict{}
	for _, w := range words {
		if w != "" {
			d.words = append(d.words, w)
		}
	}
	if len(d.words) > 0 {
		d.m = ahocorasick.NewStringMatcher(d.words)
	}
	return d
}

// find 返回 b 中出现过的关键词（按关键词表顺序，去重）。
func (d *dict) find(b []byte) []string {
	if d == nil || d.m == nil || len(b) == 0 {
		return nil
	}
	d.mu.Lock()
	hits := d.m.Match(b)
	d.mu.Unlock()

	seen := make(map[int]struct{}, len(hits))
	for _, h := range hits {
		seen[h] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for i, w := range d.words {
		if _, ok := seen[i]; ok {
			out = append(out, w)
		}
	}
	return out
}

// count 返回 b 中所有关键词出现的总次数。
func (d *dict) count(b []byte) int {
	n := 0
	for _, w := range d.find(b) {
		n += bytes.Count(b, []byte(w))
	}
	return n
}
