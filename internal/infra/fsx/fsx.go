// Package fsx 提供报告与缓存输出用的原子写入，以及“输出不得落入被审计站点”的路径守卫。
package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 测试通过替换它模拟 rename 失败。
var renameFunc = os.Rename

// TargetError 表示输出目标已存在但不是普通文件（目录、设备、符号链接等）。
type TargetError struct {
	Path string
	Kind string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("输出目标 %q 已存在且不是普通文件（%s）", e.Path, e.Kind)
}

// InsideRootError 表示输出路径位于被审计的站点目录内。
type InsideRootError struct {
	Root string
	Path string
}

func (e *InsideRootError) Error() string {
	return fmt.Sprintf("输出路径 %q 位于站点目录 %q 内；审计不会写入站点", e.Path, e.Root)
}

// Within 判断 p 是否是 root 本身或位于 root 之下。两者按 Clean 后的字面路径比较。
func Within(root, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// GuardOutside 在 p 位于 root 之内时返回 *InsideRootError。
func GuardOutside(root, p string) error {
	if Within(root, p) {
		return &InsideRootError{Root: filepath.Clean(root), Path: filepath.Clean(p)}
	}
	return nil
}

// WriteFile 原子写入 path：同目录临时文件 + Sync + rename，父目录不存在时创建。
// 已存在的普通文件会被覆盖；其它类型的目标返回 *TargetError。
func WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if fi, err := os.Lstat(path); err == nil {
		if !fi.Mode().IsRegular() {
			kind := "dir"
			if !fi.IsDir() {
				kind = fi.Mode().Type().String()
			}
			return &TargetError{Path: path, Kind: kind}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	dir, name := filepath.Split(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmpName, path); err != nil {
		return err
	}
	committed = true
	syncDir(dir)
	return nil
}

// syncDir 尽力 fsync 目录；Windows 上目录 Sync 语义不稳定，直接跳过。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
