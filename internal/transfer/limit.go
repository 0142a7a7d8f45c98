package transfer

import (
	"comicloader/internal/core/types"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

const (
	MinBurst = 32 * humanize.KiByte
	MaxBurst = 1 * humanize.MiByte
)

// NewBandwidthLimiter creates a limiter allowing perSecond bytes per second.
// The burst is a tenth of the rate clamped to [MinBurst, MaxBurst]. A zero
// rate is unlimited.
func NewBandwidthLimiter(perSecond types.Bytes) *rate.Limiter {
	if perSecond == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := min(max(uint64(perSecond)/10, MinBurst), MaxBurst)
	return rate.NewLimiter(rate.Limit(perSecond), int(burst))
}
