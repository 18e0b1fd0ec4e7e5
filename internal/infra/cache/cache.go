// Package cache 提供跨 run 的视频元数据磁盘缓存。
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/infra/fsx"
)

// Store 提供 <dir>/oembed/<id>.json 下的文件缓存读写。
//
// 约束：
// - 只持久化确定性结果（ok / not_found）；临时失败不落盘，下次 run 会重试
// - ReadOnly=true 时只允许读
type Store struct {
	Dir      string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(dir string, readOnly bool) Store {
	return Store{
		Dir:      filepath.Clean(strings.TrimSpace(dir)),
		ReadOnly: readOnly,
	}
}

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoPath 返回视频元数据缓存文件的绝对路径。
func (s Store) VideoPath(id string) (string, error) {
	if !videoIDRE.MatchString(id) {
		return "", fmt.Errorf("非法视频 ID：%q", id)
	}
	return filepath.Join(s.Dir, "oembed", id+".json"), nil
}

// ReadVideo 读取缓存；不存在返回 ok=false。损坏的缓存文件视为未命中。
func (s Store) ReadVideo(id string) (domain.VideoMetadata, bool, error) {
	path, err := s.VideoPath(id)
	if err != nil {
		return domain.VideoMetadata{}, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.VideoMetadata{}, false, nil
		}
		return domain.VideoMetadata{}, false, err
	}
	var m domain.VideoMetadata
	if err := json.Unmarshal(b, &m); err != nil || m.VideoID != id || !persistable(m.State) {
		return domain.VideoMetadata{}, false, nil
	}
	return m, true, nil
}

// WriteVideo 写入缓存；非确定性结果直接忽略（返回 nil）。
func (s Store) WriteVideo(m domain.VideoMetadata) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if !persistable(m.State) {
		return nil
	}
	path, err := s.VideoPath(m.VideoID)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFile(path, append(b, '\n'))
}

func persistable(st domain.FetchState) bool {
	return st == domain.FetchOK || st == domain.FetchNotFound
}
