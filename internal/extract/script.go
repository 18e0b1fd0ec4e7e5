package extract

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

const stringQuery = `[(string) (template_string)] @str`

var (
	jsQueryOnce sync.Once
	jsQuery     *sitter.Query
	jsQueryErr  error
)

// 编译后的 query 可跨 goroutine 共享；parser 不可共享，每次调用单独创建。
func scriptQuery() (*sitter.Query, error) {
	jsQueryOnce.Do(func() {
		jsQuery, jsQueryErr = sitter.NewQuery([]byte(stringQuery), javascript.GetLanguage())
	})
	return jsQuery, jsQueryErr
}

// ScriptResult 是脚本抽取的结果。
type ScriptResult struct {
	Refs []domain.RawReference
	// SyntaxError 表示语法树中存在错误节点；已抽取的字符串仍然有效。
	SyntaxError bool
}

// Script 用 JavaScript 语法树抽取文件型字符串字面量。
func Script(ctx context.Context, rel string, src []byte, sections Sections) (ScriptResult, error) {
	if len(src) == 0 {
		return ScriptResult{}, nil
	}
	q, err := scriptQuery()
	if err != nil {
		return ScriptResult{}, fmt.Errorf("编译 JavaScript query 失败：%w", err)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return ScriptResult{}, fmt.Errorf("解析脚本失败：%w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	res := ScriptResult{SyntaxError: root.HasError()}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	seen := map[string]struct{}{}
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			v := literalValue(c.Node, src)
			if !scriptPathLike(v, sections) {
				continue
			}
			key := fmt.Sprintf("%d:%s", c.Node.StartByte(), v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			res.Refs = append(res.Refs, domain.RawReference{
				SourceFile: rel,
				Value:      v,
				Class:      classForValue(v),
				Origin:     domain.OriginScript,
				Line:       int(c.Node.StartPoint().Row) + 1,
			})
		}
	}
	return res, nil
}

// literalValue 去掉字符串字面量两端的引号/反引号。
func literalValue(n *sitter.Node, src []byte) string {
	text := src[n.StartByte():n.EndByte()]
	if len(text) < 2 {
		return ""
	}
	return string(text[1 : len(text)-1])
}
