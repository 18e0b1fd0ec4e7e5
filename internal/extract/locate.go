package extract

import (
	"bytes"
	"sort"
)

// locator 把原始值映射回源文件的行号（best effort：取首次出现的位置）。
type locator struct {
	src []byte
	nl  []int // 每个 '\n' 的偏移
}

func newLocator(src []byte) *locator {
	l := &locator{src: src}
	for i, c := range src {
		if c == '\n' {
			l.nl = append(l.nl, i)
		}
	}
	return l
}

// lineAt 返回偏移 off 所在的行（1-based）。
func (l *locator) lineAt(off int) int {
	return sort.SearchInts(l.nl, off) + 1
}

// find 返回 value 首次出现的行号；找不到返回 0。
func (l *locator) find(value string) int {
	if value == "" {
		return 0
	}
	i := bytes.Index(l.src, []byte(value))
	if i < 0 {
		return 0
	}
	return l.lineAt(i)
}
