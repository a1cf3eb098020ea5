package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/model"
)

const refreshTimeout = 10 * time.Second

type metricsSource interface {
	Watched() map[string]model.BusinessSector
	Refresh(ctx context.Context, tenantID string, sector model.BusinessSector) model.DashboardMetrics
}

// MetricsRefresher periodically refreshes the metrics of every watched
// tenant. Refreshes of one tick run one after another.
type MetricsRefresher struct {
	source   metricsSource
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewMetricsRefresher(source metricsSource, interval time.Duration) *MetricsRefresher {
	return &MetricsRefresher{
		source:   source,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *MetricsRefresher) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("metrics refresher started")
}

func (j *MetricsRefresher) Stop() {
	close(j.done)
	j.wg.Wait()
	log.Info().Msg("metrics refresher stopped")
}

func (j *MetricsRefresher) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.refreshAll()
		}
	}
}

func (j *MetricsRefresher) refreshAll() {
	watched := j.source.Watched()
	if len(watched) == 0 {
		return
	}

	for tenantID, sector := range watched {
		select {
		case <-j.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		metrics := j.source.Refresh(ctx, tenantID, sector)
		cancel()

		log.Debug().
			Str("tenantId", tenantID).
			Str("dataSource", string(metrics.Meta.DataSource)).
			Msg("metrics refreshed")
	}
}
