package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/John-Robertt/siteaudit/internal/config"
	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/lint"
	"github.com/John-Robertt/siteaudit/internal/report"
	"github.com/John-Robertt/siteaudit/internal/scan"
)

const page = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width"><meta name="description" content="d"><title>%s</title></head>
<body><h1>%s</h1>%s</body>
</html>
`

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func htmlPage(title, body string) string {
	return fmt.Sprintf(page, title, title, body)
}

func testConfig(t *testing.T, root string) config.EffectiveConfig {
	t.Helper()
	tax, err := config.LoadTaxonomy("")
	require.NoError(t, err)
	return config.EffectiveConfig{
		Root:         root,
		Exclude:      config.DefaultExclude,
		OrphanExempt: config.DefaultOrphanExempt,
		Concurrency:  4,
		Lint: config.LintConfig{
			MaxLineLength:   config.DefaultMaxLineLength,
			MaxInlineStyles: config.DefaultMaxInlineStyles,
			MaxHeadScripts:  config.DefaultMaxHeadScripts,
		},
		Video:    config.VideoConfig{Skip: true},
		Taxonomy: tax,
	}
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

type fakeSource struct {
	mu     sync.Mutex
	titles map[string]string
	calls  int
}

func (f *fakeSource) Lookup(ctx context.Context, id string) (domain.VideoMetadata, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if title, ok := f.titles[id]; ok {
		return domain.VideoMetadata{VideoID: id, Title: title, AuthorName: "tester", State: domain.FetchOK}, nil
	}
	return domain.VideoMetadata{VideoID: id, State: domain.FetchNotFound, Reason: domain.ReasonNotFound}, nil
}

func TestExecute_BrokenLinkReportedOnce(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": htmlPage("Home", `<a href="a.html">a</a>`),
		"a.html":     htmlPage("A", `<a href="/b.html">b</a>`),
	})

	r, err := Execute(context.Background(), testConfig(t, root), Deps{Log: zap.NewNop(), Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, r.BrokenLinks, 1)
	it := r.BrokenLinks[0]
	require.Equal(t, "a.html", it.File)
	require.Equal(t, "/b.html", it.Target)
	require.Equal(t, TypeMissingTarget, it.Type)
	require.Equal(t, domain.SeverityError, it.Severity)
	require.True(t, r.Failed())
	require.Empty(t, r.OrphanFiles)
	require.Equal(t, domain.VideoCheckSkipped, r.VideoCheck)
}

func TestExecute_StylesheetOnlyAssetIsNotOrphan(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": htmlPage("Home", `<link rel="stylesheet" href="/c.css">`),
		"c.css":      "body { background: url(/img/d.png); }\n",
		"img/d.png":  "png",
		"img/e.png":  "png",
	})

	r, err := Execute(context.Background(), testConfig(t, root), Deps{Now: fixedNow})
	require.NoError(t, err)

	require.NotContains(t, r.OrphanFiles, "img/d.png")
	require.NotContains(t, r.OrphanFiles, "c.css")
	require.Equal(t, []string{"img/e.png"}, r.OrphanFiles)
	require.Empty(t, r.BrokenLinks)
	require.False(t, r.Failed(), "orphan 只是提示")
}

func TestExecute_SkippedVideoCheckIsPartial(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": htmlPage("Home", `<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe>`),
	})

	r, err := Execute(context.Background(), testConfig(t, root), Deps{Now: fixedNow})
	require.NoError(t, err)
	require.Equal(t, domain.VideoCheckSkipped, r.VideoCheck)
	require.True(t, r.Partial)
	require.Empty(t, r.VideoIssues)

	var buf bytes.Buffer
	require.NoError(t, report.RenderConsole(&buf, r, report.ConsoleOptions{}))
	require.Contains(t, buf.String(), "[PARTIAL]")
	require.Contains(t, buf.String(), "视频检查：已跳过")
}

func TestExecute_VideoSubjectMismatch(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":        htmlPage("Home", `<a href="/ships/ship-x.html">x</a>`),
		"ships/ship-x.html": htmlPage("Ship X", `<iframe src="https://www.youtube.com/embed/aaaaaaaaaaa"></iframe>`),
	})
	eff := testConfig(t, root)
	eff.Video = config.VideoConfig{Concurrency: 2, RatePerSecond: 100, Timeout: time.Second}
	src := &fakeSource{titles: map[string]string{"aaaaaaaaaaa": "Top 10 Things To Do on Ship Y"}}

	r, err := Execute(context.Background(), eff, Deps{VideoSource: src, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, r.VideoIssues, 1)
	it := r.VideoIssues[0]
	require.Equal(t, "ships/ship-x.html", it.File)
	require.Equal(t, domain.ReasonSubjectNotMentioned, it.Type)
	require.NotNil(t, it.Video)
	require.Equal(t, "top10", it.Video.Category)
	require.Equal(t, domain.VideoCheckComplete, r.VideoCheck)
	require.Equal(t, 1, r.Summary.VideosChecked)
	require.Equal(t, 1, src.calls)
	require.False(t, r.Failed(), "视频不匹配只是提示")
}

func TestExecute_MalformedJSONLDIsIsolated(t *testing.T) {
	body := `<!DOCTYPE html>
<html lang="en">
<head><meta name="viewport" content="width=device-width"><title>D</title>
<script type="application/ld+json">{"name": </script>
</head>
<body><h1>a</h1><h1>b</h1></body>
</html>
`
	root := writeSite(t, map[string]string{"index.html": body})

	r, err := Execute(context.Background(), testConfig(t, root), Deps{Now: fixedNow})
	require.NoError(t, err)

	byType := map[string]int{}
	for _, it := range r.LintIssues {
		require.Equal(t, "index.html", it.File)
		byType[it.Type]++
	}
	require.Equal(t, 1, byType[lint.TypeInvalidJSONLD])
	require.Equal(t, 1, byType[lint.TypeMultipleH1])
	require.Equal(t, 1, byType[lint.TypeMissingMetaDescription])
	require.True(t, r.Failed())
}

func TestExecute_JSONReferencesAreStructured(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":        htmlPage("Home", `<script src="/app.js"></script>`),
		"app.js":            "fetch('/data/ships.json');\n",
		"data/ships.json":   `{"ships":[{"page":"/ships/ship-x","image":"/img/x.png"}]}`,
		"ships/ship-x.html": htmlPage("Ship X", ""),
	})

	r, err := Execute(context.Background(), testConfig(t, root), Deps{Now: fixedNow})
	require.NoError(t, err)

	require.Empty(t, r.BrokenLinks)
	require.Len(t, r.JSONBrokenRefs, 1)
	require.Equal(t, "data/ships.json", r.JSONBrokenRefs[0].File)
	require.Equal(t, "/img/x.png", r.JSONBrokenRefs[0].Target)
	require.NotContains(t, r.OrphanFiles, "data/ships.json")
}

func TestExecute_OutsideRootHasDistinctType(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": htmlPage("Home", `<a href="../../etc/passwd.html">x</a>`),
	})

	r, err := Execute(context.Background(), testConfig(t, root), Deps{Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, r.BrokenLinks, 1)
	require.Equal(t, TypeOutsideRoot, r.BrokenLinks[0].Type)
}

func TestExecute_Idempotent(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": htmlPage("Home", `<a href="a.html">a</a><img src="/missing.png">`),
		"a.html":     htmlPage("A", `<a href="/b.html">b</a><a href="/nope/">n</a>`),
		"c.css":      "div { background: url(gone.png); }\n",
		"stale.html": htmlPage("Stale", ""),
	})
	eff := testConfig(t, root)
	eff.Concurrency = 8

	var outs []string
	for i := 0; i < 3; i++ {
		r, err := Execute(context.Background(), eff, Deps{Now: fixedNow})
		require.NoError(t, err)
		b, err := report.Marshal(r)
		require.NoError(t, err)
		outs = append(outs, string(b))
	}
	require.Equal(t, outs[0], outs[1])
	require.Equal(t, outs[0], outs[2])
}

func TestExecute_RootErrorIsFatal(t *testing.T) {
	eff := testConfig(t, filepath.Join(t.TempDir(), "missing"))
	_, err := Execute(context.Background(), eff, Deps{})
	require.Error(t, err)
	var re *scan.RootError
	require.True(t, errors.As(err, &re))
}

func TestExecute_CanceledIsPartial(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": htmlPage("Home", `<a href="a.html">a</a>`),
		"a.html":     htmlPage("A", ""),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := Execute(ctx, testConfig(t, root), Deps{Now: fixedNow})
	require.NoError(t, err)
	require.True(t, r.Partial)
	require.Empty(t, r.OrphanFiles, "分析不完整时不报告 orphan")
	require.Equal(t, 2, r.FilesAudited.Total)
}

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	files      []string
	videos     int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnFileDone(idx, total int, rel string, findings int, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files = append(o.files, rel)
}

func (o *recordObserver) OnVideoChecked(done, total int, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.videos++
}

func TestExecute_ObserverPhaseOrder(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":        htmlPage("Home", `<a href="/ships/ship-x.html">x</a>`),
		"ships/ship-x.html": htmlPage("Ship X", `<div data-video-id="bbbbbbbbbbb"></div>`),
		"c.css":             "",
	})
	eff := testConfig(t, root)
	eff.Video = config.VideoConfig{RatePerSecond: 100, Timeout: time.Second}
	obs := &recordObserver{}

	_, err := Execute(context.Background(), eff, Deps{
		Observer:    obs,
		VideoSource: &fakeSource{titles: map[string]string{"bbbbbbbbbbb": "Ship X full tour"}},
	})
	require.NoError(t, err)

	require.Equal(t, 1, obs.startCalls)
	require.Equal(t, []string{PhaseCollect, PhaseAnalyze, PhaseResolve, PhaseOrphans, PhaseVideos, PhaseReport}, obs.phases)
	require.ElementsMatch(t, []string{"c.css", "index.html", "ships/ship-x.html"}, obs.files)
	require.Equal(t, 1, obs.videos)
}
