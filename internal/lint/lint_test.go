package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/extract"
)

const cleanPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="description" content="Ship X deck plans">
<title>Ship X</title>
<script type="application/ld+json">{"@type":"Article","headline":"Ship X"}</script>
</head>
<body>
<h1>Ship X</h1>
<img src="/img/x.png" alt="Ship X at sea">
<form action="/search"><input name="q"></form>
</body>
</html>
`

func testEngine() *Engine {
	return New(Options{MaxLineLength: 200, MaxInlineStyles: 2, MaxHeadScripts: 1, BlockedVideoIDs: []string{"dQw4w9WgXcQ"}})
}

func parse(t *testing.T, src string) *extract.Page {
	t.Helper()
	p, err := extract.ParseHTML("ships/x.html", []byte(src))
	require.NoError(t, err)
	return p
}

func types(issues []domain.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, it := range issues {
		out = append(out, it.Type)
	}
	return out
}

func TestCheck_CleanPageHasNoFindings(t *testing.T) {
	issues := testEngine().Check(parse(t, cleanPage))
	require.Empty(t, issues, "types=%v", types(issues))
}

func TestCheck_StructuralLint(t *testing.T) {
	src := `<html><head></head><body>
<h1>A</h1><h1>B</h1>
<img src="/a.png"><img src="/b.png" alt=""><img src="/c.png" alt="ok">
<center><font color="red">old</font></center>
<!-- TODO: rewrite intro -->
<script>console.log("x"); debugger;</script>
<p style="a"></p><p style="b"></p><p style="c"></p>
</body></html>`
	issues := testEngine().Check(parse(t, src))

	byType := map[string]domain.Issue{}
	for _, it := range issues {
		byType[it.Type] = it
		require.Equal(t, "ships/x.html", it.File)
	}
	for _, typ := range []string{
		TypeMissingDoctype, TypeMissingLang, TypeMissingTitle, TypeMissingMetaDescription,
		TypeMultipleH1, TypeMissingAlt, TypeDeprecatedMarkup, TypeTodoMarkers,
		TypeDebugStatements, TypeExcessiveInlineStyles, TypeMissingViewport,
	} {
		_, ok := byType[typ]
		require.True(t, ok, "缺少 %s，实际 %v", typ, types(issues))
	}
	require.Equal(t, 2, byType[TypeMultipleH1].Count)
	require.Equal(t, 2, byType[TypeMissingAlt].Count)
	require.Equal(t, 2, byType[TypeDeprecatedMarkup].Count)
	require.Equal(t, 3, byType[TypeExcessiveInlineStyles].Count)
	require.Equal(t, 2, byType[TypeDebugStatements].Count)
	require.Equal(t, 5, byType[TypeTodoMarkers].Line)
	require.Equal(t, domain.CategoryEdgeCase, byType[TypeMissingViewport].Category)

	for _, it := range issues {
		require.False(t, it.Fatal(), "%s 不应是硬错误", it.Type)
	}
}

// 一个损坏的 JSON-LD 块只产生一条 issue，其它检查照常执行。
func TestCheck_MalformedJSONLDIsolated(t *testing.T) {
	src := strings.Replace(cleanPage,
		`<script type="application/ld+json">{"@type":"Article","headline":"Ship X"}</script>`,
		`<script type="application/ld+json">{"@type":"Article",</script>`+"\n"+`<h1>Second</h1>`, 1)
	issues := testEngine().Check(parse(t, src))

	n := 0
	for _, it := range issues {
		if it.Type == TypeInvalidJSONLD {
			n++
			require.Equal(t, domain.SeverityError, it.Severity)
			require.True(t, it.Fatal())
			require.Equal(t, 8, it.Line)
		}
	}
	require.Equal(t, 1, n)
	require.Contains(t, types(issues), TypeMultipleH1)
}

func TestCheck_BlockedVideoIsHardFailure(t *testing.T) {
	src := strings.Replace(cleanPage, "</body>",
		`<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe></body>`, 1)
	issues := testEngine().Check(parse(t, src))
	require.Len(t, issues, 1)
	require.Equal(t, TypeBlockedVideoID, issues[0].Type)
	require.Equal(t, "dQw4w9WgXcQ", issues[0].Target)
	require.True(t, issues[0].Fatal())
}

func TestCheck_BlockedVideoInsideLongerTokenIsIgnored(t *testing.T) {
	src := strings.Replace(cleanPage, "</body>",
		`<p data-ref="xdQw4w9WgXcQy">ref</p><a href="/v/dQw4w9WgXcQ_2">v</a></body>`, 1)
	require.Empty(t, testEngine().Check(parse(t, src)))

	src = strings.Replace(cleanPage, "</body>",
		"<p data-ref=\"xdQw4w9WgXcQy\">ref</p>\n<a href=\"https://youtu.be/dQw4w9WgXcQ?t=3\">v</a></body>", 1)
	issues := testEngine().Check(parse(t, src))
	require.Len(t, issues, 1)
	require.Equal(t, TypeBlockedVideoID, issues[0].Type)
	require.Equal(t, strings.Count(src[:strings.Index(src, "youtu.be")], "\n")+1, issues[0].Line)
}

func TestCheck_EdgeCases(t *testing.T) {
	long := strings.Repeat("x", 250)
	src := `<!DOCTYPE html><html lang="en"><head>
<meta name="viewport" content="width=device-width">
<meta name="description" content="d">
<title>t</title>
<script src="/js/a.js"></script><script src="/js/b.js"></script><script src="/js/c.js" defer></script>
<link rel="stylesheet" href="http://cdn.example.com/x.css">
</head><body>
<h1>t</h1>
<p id="dup">` + long + `</p><p id="dup"></p><p id="solo"></p>
<img src="http://example.com/a.png" alt="a">
<a href="http://example.com/page">plain link</a>
<form><input></form>
<p>Lorem ipsum dolor sit amet</p>
<script>var s = "lorem ipsum";</script>
</body></html>`
	issues := testEngine().Check(parse(t, src))

	byType := map[string]domain.Issue{}
	for _, it := range issues {
		byType[it.Type] = it
	}
	require.Equal(t, 9, byType[TypeLongLines].Line)
	require.Equal(t, 2, byType[TypeMixedContent].Count)
	require.Equal(t, "dup", byType[TypeDuplicateIDs].Target)
	require.Equal(t, 2, byType[TypeDuplicateIDs].Count)
	require.Equal(t, 1, byType[TypeFormWithoutAction].Count)
	require.Equal(t, 2, byType[TypeRenderBlockingScripts].Count)
	require.Equal(t, 2, byType[TypePlaceholderText].Count)
	for _, typ := range []string{TypeLongLines, TypeMixedContent, TypeDuplicateIDs, TypeFormWithoutAction, TypeRenderBlockingScripts, TypePlaceholderText} {
		require.Equal(t, domain.CategoryEdgeCase, byType[typ].Category, typ)
		require.False(t, byType[typ].Fatal())
	}
}

func TestCheck_PanicBecomesCheckFailed(t *testing.T) {
	e := testEngine()
	e.checks = append(e.checks, check{name: "boom", run: func(*Engine, *extract.Page) []domain.Issue {
		panic("boom")
	}})
	issues := e.Check(parse(t, cleanPage))
	require.Len(t, issues, 1)
	require.Equal(t, TypeCheckFailed, issues[0].Type)
	require.Equal(t, "boom", issues[0].Target)
}

func TestUnparseable(t *testing.T) {
	it := Unparseable("bad.json", nil)
	require.Equal(t, TypeUnparseable, it.Type)
	require.True(t, it.Fatal())
	require.False(t, ScriptSyntax("a.js").Fatal())
}
