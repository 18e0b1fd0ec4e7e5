// Package scan 遍历站点目录树，构建本次 audit 的文件清单（inventory）。
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

// IgnoreFileName 是站点根目录下可选的 gitignore 语法排除文件。
const IgnoreFileName = ".auditignore"

// Rules 是收集阶段的排除规则（加载后只读）。
type Rules struct {
	// Exclude 是路径子串（相对 root，'/' 分隔）；命中的目录整体跳过。
	Exclude []string
	// Ignore 是 gitignore 语法的模式，与 <root>/.auditignore 合并使用。
	Ignore []string
}

// Result 是一次收集的结果。
type Result struct {
	Files []domain.FileRecord
	// Unreadable 是遍历中无法读取而被跳过的子目录（相对路径）。
	Unreadable []string
}

// RootError 表示根目录不存在/不可读/不是目录：致命错误，不产出任何报告。
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("无法读取站点根目录 %q：%v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

// Collect 遍历 root 下的全部普通文件，应用排除规则并按类型分类。
//
// 规则（硬约束）：
// - 每个目录/文件只访问一次；符号链接跳过（避免环路与越界）
// - 输出按 RelPath 排序，保证同一棵树多次运行结果一致
// - 根目录问题返回 *RootError；子目录不可读则跳过并记录
func Collect(root string, rules Rules) (Result, error) {
	root = filepath.Clean(root)
	fi, err := os.Stat(root)
	if err != nil {
		return Result{}, &RootError{Root: root, Err: err}
	}
	if !fi.IsDir() {
		return Result{}, &RootError{Root: root, Err: errors.New("不是目录")}
	}
	if _, err := os.ReadDir(root); err != nil {
		return Result{}, &RootError{Root: root, Err: err}
	}

	gi, err := compileIgnore(root, rules.Ignore)
	if err != nil {
		return Result{}, err
	}
	excludes := cleanExcludes(rules.Exclude)

	res := Result{Files: make([]domain.FileRecord, 0, 256)}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			if path == root {
				return &RootError{Root: root, Err: walkErr}
			}
			res.Unreadable = append(res.Unreadable, rel)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if isExcluded(rel+"/", excludes) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if isExcluded(rel, excludes) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Unreadable = append(res.Unreadable, rel)
			return nil
		}

		res.Files = append(res.Files, domain.FileRecord{
			RelPath: rel,
			AbsPath: path,
			Kind:    domain.KindForPath(rel),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		var re *RootError
		if errors.As(err, &re) {
			return Result{}, re
		}
		return Result{}, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].RelPath < res.Files[j].RelPath })
	sort.Strings(res.Unreadable)
	return res, nil
}

func compileIgnore(root string, patterns []string) (*ignore.GitIgnore, error) {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}

	ignorePath := filepath.Join(root, IgnoreFileName)
	if _, err := os.Stat(ignorePath); err == nil {
		gi, err := ignore.CompileIgnoreFileAndLines(ignorePath, lines...)
		if err != nil {
			return nil, fmt.Errorf("读取 %s 失败：%w", IgnoreFileName, err)
		}
		return gi, nil
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return ignore.CompileIgnoreLines(lines...), nil
}

func cleanExcludes(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		x = strings.TrimSpace(filepath.ToSlash(x))
		if x == "" {
			continue
		}
		out = append(out, x)
	}
	return out
}

func isExcluded(rel string, excludes []string) bool {
	for _, x := range excludes {
		if strings.Contains(rel, x) {
			return true
		}
	}
	return false
}
