package track

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

func resolved(src, target string, exists bool) domain.ResolvedReference {
	return domain.ResolvedReference{
		Raw:          domain.RawReference{SourceFile: src, Value: "/" + target},
		ResolvedPath: target,
		Exists:       exists,
	}
}

func files(paths ...string) []domain.FileRecord {
	out := make([]domain.FileRecord, 0, len(paths))
	for _, p := range paths {
		out = append(out, domain.FileRecord{RelPath: p, Kind: domain.KindForPath(p)})
	}
	return out
}

func TestOrphans_Basic(t *testing.T) {
	tr := New()
	tr.Mark(resolved("index.html", "a.html", true))
	tr.Mark(resolved("a.html", "missing.html", false))

	inv := files("index.html", "a.html", "b.html", "img/z.png", "img/a.png")
	got := tr.Orphans(inv, NewPolicy([]string{"index.html"}))
	require.Equal(t, []string{"b.html", "img/a.png", "img/z.png"}, got)
}

func TestOrphans_StylesheetOnlyReferenceIsNotOrphan(t *testing.T) {
	tr := New()
	tr.Mark(resolved("index.html", "c.css", true))
	tr.Mark(domain.ResolvedReference{
		Raw:          domain.RawReference{SourceFile: "c.css", Value: "/img/d.png", Origin: domain.OriginStyle},
		ResolvedPath: "img/d.png",
		Exists:       true,
	})
	got := tr.Orphans(files("index.html", "c.css", "img/d.png"), NewPolicy([]string{"index.html"}))
	require.Empty(t, got)
	require.NotNil(t, got)
}

func TestOrphans_SelfReferenceDoesNotCount(t *testing.T) {
	tr := New()
	tr.Mark(resolved("lonely.html", "lonely.html", true))
	require.False(t, tr.Referenced("lonely.html"))
	require.Equal(t, []string{"lonely.html"}, tr.Orphans(files("lonely.html"), nil))
}

func TestPolicy_Patterns(t *testing.T) {
	p := NewPolicy([]string{"index.html", "404.html", "sitemap*.xml", "scripts/", "*.md", " "})
	require.True(t, p.Exempt("index.html"))
	require.True(t, p.Exempt("ships/index.html"))
	require.True(t, p.Exempt("sitemap-ships.xml"))
	require.True(t, p.Exempt("scripts/build.py"))
	require.True(t, p.Exempt("docs/README.md"))
	require.False(t, p.Exempt("about.html"))
	require.False(t, p.Exempt("img/scripts.png"))

	var nilPolicy *Policy
	require.False(t, nilPolicy.Exempt("index.html"))
	require.False(t, NewPolicy(nil).Exempt("index.html"))
}

func TestTracker_ConcurrentMark(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.Mark(resolved("index.html", fmt.Sprintf("p%d.html", j), true))
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, tr.Len())
}
