package audit

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/lint"
)

// lateCancelCtx 第一次 Err() 返回 nil，之后表现为已取消，模拟分析途中收到中断。
type lateCancelCtx struct {
	context.Context
	calls atomic.Int32
}

func newLateCancelCtx() *lateCancelCtx {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &lateCancelCtx{Context: ctx}
}

func (c *lateCancelCtx) Err() error {
	if c.calls.Add(1) == 1 {
		return nil
	}
	return context.Canceled
}

func scriptRecord(t *testing.T, body string) domain.FileRecord {
	t.Helper()
	root := writeSite(t, map[string]string{"js/app.js": body})
	return domain.FileRecord{
		RelPath: "js/app.js",
		AbsPath: filepath.Join(root, "js", "app.js"),
		Kind:    domain.KindScript,
	}
}

func TestAnalyzeFile_CanceledBeforeStartIsNotDone(t *testing.T) {
	rec := scriptRecord(t, `fetch("/data/items.json");`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	an := &analyzer{engine: lint.New(lint.Options{})}
	res := an.analyzeFile(ctx, rec)
	require.False(t, res.done)
	require.Empty(t, res.issues)
	require.Empty(t, res.refs)
}

func TestAnalyzeFile_CanceledDuringScriptParseIsNotAnIssue(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20000; i++ {
		b.WriteString(`fetch("/data/items.json").then(function (r) { return r.json(); });` + "\n")
	}
	rec := scriptRecord(t, b.String())

	an := &analyzer{engine: lint.New(lint.Options{})}
	res := an.analyzeFile(newLateCancelCtx(), rec)
	for _, it := range res.issues {
		require.NotEqual(t, lint.TypeUnparseable, it.Type, "取消不应变成解析失败")
	}
	if res.done {
		// 解析赶在取消前完成时，引用必须完整保留。
		require.NotEmpty(t, res.refs)
	}
}

func TestAnalyzeFile_OK(t *testing.T) {
	rec := scriptRecord(t, `fetch("/data/items.json");`)
	an := &analyzer{engine: lint.New(lint.Options{})}
	res := an.analyzeFile(context.Background(), rec)
	require.True(t, res.done)
	require.Len(t, res.refs, 1)
	require.Equal(t, "/data/items.json", res.refs[0].Value)
}
