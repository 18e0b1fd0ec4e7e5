package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

func TestCollect_ClassifiesAndSorts(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "z.html"))
	touch(t, filepath.Join(root, "css", "site.css"))
	touch(t, filepath.Join(root, "js", "app.js"))
	touch(t, filepath.Join(root, "data", "ships.json"))
	touch(t, filepath.Join(root, "img", "logo.PNG"))
	touch(t, filepath.Join(root, "a.html"))

	res, err := Collect(root, Rules{})
	require.NoError(t, err)

	got := make([]string, 0, len(res.Files))
	kinds := map[string]domain.FileKind{}
	for _, f := range res.Files {
		got = append(got, f.RelPath)
		kinds[f.RelPath] = f.Kind
		require.True(t, filepath.IsAbs(f.AbsPath))
	}
	require.Equal(t, []string{"a.html", "css/site.css", "data/ships.json", "img/logo.PNG", "js/app.js", "z.html"}, got)
	require.Equal(t, domain.KindStyle, kinds["css/site.css"])
	require.Equal(t, domain.KindScript, kinds["js/app.js"])
	require.Equal(t, domain.KindJSON, kinds["data/ships.json"])
	require.Equal(t, domain.KindOther, kinds["img/logo.PNG"])
}

func TestCollect_ExcludeSubstrings(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".git", "HEAD"))
	touch(t, filepath.Join(root, "node_modules", "x", "index.js"))
	touch(t, filepath.Join(root, "drafts", "wip.html"))
	touch(t, filepath.Join(root, "ok", "page.html"))
	touch(t, filepath.Join(root, "ok", "notes.bak"))

	res, err := Collect(root, Rules{Exclude: []string{".git/", "node_modules/", "drafts/", ".bak"}})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	require.Equal(t, "ok/page.html", res.Files[0].RelPath)
}

func TestCollect_GitignorePatternsAndAuditignore(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "keep.html"))
	touch(t, filepath.Join(root, "tmp", "a.html"))
	touch(t, filepath.Join(root, "x.log"))
	touch(t, filepath.Join(root, "secret.txt"))
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("secret.txt\n"), 0o644))

	res, err := Collect(root, Rules{Ignore: []string{"*.log", "tmp/"}})
	require.NoError(t, err)

	got := []string{}
	for _, f := range res.Files {
		got = append(got, f.RelPath)
	}
	require.Equal(t, []string{IgnoreFileName, "keep.html"}, got)
}

func TestCollect_RootMissingIsFatal(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "nope"), Rules{})
	var re *RootError
	require.True(t, errors.As(err, &re), "err=%v", err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCollect_RootIsFileIsFatal(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.html")
	touch(t, f)
	_, err := Collect(f, Rules{})
	var re *RootError
	require.True(t, errors.As(err, &re), "err=%v", err)
}

func TestCollect_StableAcrossRuns(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"b/2.html", "a/1.html", "c.css", "a/0.js"} {
		touch(t, filepath.Join(root, filepath.FromSlash(p)))
	}
	a, err := Collect(root, Rules{})
	require.NoError(t, err)
	b, err := Collect(root, Rules{})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}
