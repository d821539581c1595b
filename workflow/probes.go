package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"golang.org/x/sys/unix"
)

// StatfsProbe reads filesystem usage with statfs(2).
type StatfsProbe struct{}

func (StatfsProbe) Usage(path string) (monitor.DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return monitor.DiskUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return monitor.DiskUsage{TotalBytes: st.Blocks * bsize, FreeBytes: st.Bavail * bsize}, nil
}

// ValueCache is the slice of config.Redis the cache probe needs.
type ValueCache interface {
	SetValue(ctx context.Context, key string, value string, exp time.Duration) error
	GetValue(ctx context.Context, key string) (string, bool, error)
}

const cacheProbeKey = "health_check"

// CacheRoundTrip writes a fresh marker and reads it back.
type CacheRoundTrip struct {
	Cache ValueCache
}

func (p CacheRoundTrip) Check(ctx context.Context) monitor.CacheState {
	if p.Cache == nil {
		return monitor.CacheUnknown
	}
	marker := uuid.NewString()
	if err := p.Cache.SetValue(ctx, cacheProbeKey, marker, 30*time.Second); err != nil {
		return monitor.CacheError
	}
	got, ok, err := p.Cache.GetValue(ctx, cacheProbeKey)
	switch {
	case err != nil:
		return monitor.CacheError
	case !ok || got != marker:
		return monitor.CacheMismatch
	default:
		return monitor.CacheHealthy
	}
}

var (
	_ monitor.DiskProbe  = StatfsProbe{}
	_ monitor.CacheProbe = CacheRoundTrip{}
)
