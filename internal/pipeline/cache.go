package pipeline

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/xx6620/lostark-quant/internal/market"
)

type resultCache struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

func newResultCache() *resultCache {
	return &resultCache{reports: make(map[string]*Report)}
}

func (c *resultCache) get(key string) (*Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reports[key]
	return r, ok
}

func (c *resultCache) put(key string, report *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[key] = report
}

// cacheKey 由物品、数据版本（条数与最新记录）和影响结果的参数组成。
func cacheKey(records []market.PriceRecord, opts Options) string {
	opts.Concurrency = 0

	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%+v", opts)

	if len(records) == 0 {
		return fmt.Sprintf("empty|%x", h.Sum64())
	}
	first, last := records[0], records[len(records)-1]
	return fmt.Sprintf("%d|%d|%d|%d|%g|%x",
		last.ItemID,
		len(records),
		first.Date.UnixNano(),
		last.Date.UnixNano(),
		last.Price,
		h.Sum64(),
	)
}
