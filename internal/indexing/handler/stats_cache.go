package handler

import (
	"context"

	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
)

// CacheInvalidator drops cached pool statistics.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, pools ...string) error
}

// StatsCacheHandler invalidates the API's cached statistics of pools whose
// volume changed. Register it after TradingStatHandler.
type StatsCacheHandler struct {
	cache CacheInvalidator
}

func NewStatsCacheHandler(cache CacheInvalidator) *StatsCacheHandler {
	return &StatsCacheHandler{cache: cache}
}

func (h *StatsCacheHandler) Tag() domain.RecordTag { return domain.TagTradingStatUpdated }

func (h *StatsCacheHandler) Handle(group []domain.Record) ([]deferred.Action, error) {
	recs, err := records[domain.TradingStatUpdated](group)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(recs))
	pools := make([]string, 0, len(recs))
	for _, rec := range recs {
		addr := rec.Stat.PoolAddress
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		pools = append(pools, addr)
	}
	if len(pools) == 0 {
		return nil, nil
	}

	return []deferred.Action{
		deferred.Func("invalidate_stats_cache", func(ctx context.Context) error {
			return h.cache.Invalidate(ctx, pools...)
		}),
	}, nil
}
