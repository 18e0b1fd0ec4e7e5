package video

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/infra/cache"
)

// Cache 是一次 run 持有的元数据缓存（按视频 ID）。
//
// 规则：
// - 同一 ID 同时只有一个在途请求；其它请求方等待并共享结果（singleflight）
// - 命中内存缓存时不再发起任何请求
// - Disk 非空时，确定性结果（ok / not_found）跨 run 持久化
type Cache struct {
	src  Source
	disk *cache.Store
	log  *zap.Logger

	mu sync.RWMutex
	m  map[string]domain.VideoMetadata
	sf singleflight.Group

	lookups atomic.Int64
}

func NewCache(src Source, disk *cache.Store, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{src: src, disk: disk, log: log, m: map[string]domain.VideoMetadata{}}
}

// Get 返回 id 的元数据；首次查询时创建，之后只读共享。
func (c *Cache) Get(ctx context.Context, id string) domain.VideoMetadata {
	if m, ok := c.cached(id); ok {
		return m
	}
	v, _, _ := c.sf.Do(id, func() (any, error) {
		if m, ok := c.cached(id); ok {
			return m, nil
		}
		if c.disk != nil {
			if m, ok, err := c.disk.ReadVideo(id); err != nil {
				c.log.Debug("读取视频缓存失败", zap.String("video_id", id), zap.Error(err))
			} else if ok {
				c.store(m)
				return m, nil
			}
		}

		c.lookups.Add(1)
		m, err := c.src.Lookup(ctx, id)
		if err != nil {
			c.log.Debug("视频元数据查询失败", zap.String("video_id", id), zap.String("reason", m.Reason), zap.Error(err))
		}
		c.store(m)
		if c.disk != nil && !c.disk.ReadOnly {
			if err := c.disk.WriteVideo(m); err != nil {
				c.log.Warn("写入视频缓存失败", zap.String("video_id", id), zap.Error(err))
			}
		}
		return m, nil
	})
	return v.(domain.VideoMetadata)
}

// Lookups 返回实际发往 Source 的请求数（用于统计与测试）。
func (c *Cache) Lookups() int {
	return int(c.lookups.Load())
}

func (c *Cache) cached(id string) (domain.VideoMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.m[id]
	return m, ok
}

func (c *Cache) store(m domain.VideoMetadata) {
	c.mu.Lock()
	c.m[m.VideoID] = m
	c.mu.Unlock()
}
