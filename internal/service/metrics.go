package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/bridge"
	"github.com/whalix/dashboard-server/internal/model"
)

const (
	defaultUpdateIntervalSeconds = 30

	demoPhoneNumber = "+225 07 00 00 00 01"
)

var peakHours = []string{"18:00", "19:00", "20:00"}

type MetricsCache interface {
	Get(ctx context.Context, tenantID string) (*model.DashboardMetrics, error)
	Set(ctx context.Context, metrics model.DashboardMetrics) error
}

// SessionSnapshotter exposes the current session of a tenant.
type SessionSnapshotter interface {
	Get(tenantID string) model.Session
}

// MetricsReader serves dashboard counters: live from the bridge when it
// answers, otherwise the last cached live value, otherwise demo figures.
type MetricsReader struct {
	bridge         bridge.Client
	cache          MetricsCache
	sessions       SessionSnapshotter
	updateInterval int
	now            func() time.Time

	mu      sync.RWMutex
	last    map[string]model.DashboardMetrics
	watched map[string]model.BusinessSector
}

func NewMetricsReader(client bridge.Client, cache MetricsCache, sessions SessionSnapshotter, updateInterval time.Duration) *MetricsReader {
	seconds := int(updateInterval / time.Second)
	if seconds <= 0 {
		seconds = defaultUpdateIntervalSeconds
	}

	return &MetricsReader{
		bridge:         client,
		cache:          cache,
		sessions:       sessions,
		updateInterval: seconds,
		now:            time.Now,
		last:           make(map[string]model.DashboardMetrics),
		watched:        make(map[string]model.BusinessSector),
	}
}

// Read never fails; every bridge or cache error degrades the data source.
func (r *MetricsReader) Read(ctx context.Context, tenantID string, sector model.BusinessSector) model.DashboardMetrics {
	session := r.sessions.Get(tenantID)

	raw, err := r.bridge.Metrics(ctx, tenantID)
	if err == nil {
		return TransformMetrics(tenantID, *raw, session, sector, r.now(), r.updateInterval)
	}
	log.Debug().Err(err).Str("tenantId", tenantID).Msg("live metrics unavailable")

	if r.cache != nil {
		cached, cacheErr := r.cache.Get(ctx, tenantID)
		if cacheErr != nil {
			log.Warn().Err(cacheErr).Str("tenantId", tenantID).Msg("failed to read cached metrics")
		}
		if cached != nil {
			metrics := *cached
			metrics.WhatsApp = withSession(metrics.WhatsApp, session)
			metrics.Meta.DataSource = model.DataSourceCached
			return metrics
		}
	}

	metrics := DemoMetrics(tenantID, sector, r.now())
	metrics.Meta.UpdateInterval = r.updateInterval
	return metrics
}

// Refresh reads the tenant's metrics and remembers them. Only live values
// reach the shared cache.
func (r *MetricsReader) Refresh(ctx context.Context, tenantID string, sector model.BusinessSector) model.DashboardMetrics {
	metrics := r.Read(ctx, tenantID, sector)

	if metrics.Meta.DataSource == model.DataSourceLive && r.cache != nil {
		if err := r.cache.Set(ctx, metrics); err != nil {
			log.Warn().Err(err).Str("tenantId", tenantID).Msg("failed to cache metrics")
		}
	}

	r.mu.Lock()
	r.last[tenantID] = metrics
	r.mu.Unlock()

	return metrics
}

func (r *MetricsReader) Last(tenantID string) (model.DashboardMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics, ok := r.last[tenantID]
	return metrics, ok
}

func (r *MetricsReader) Watch(tenantID string, sector model.BusinessSector) {
	r.mu.Lock()
	r.watched[tenantID] = sector
	r.mu.Unlock()
}

func (r *MetricsReader) Unwatch(tenantID string) {
	r.mu.Lock()
	delete(r.watched, tenantID)
	r.mu.Unlock()
}

// Watched returns a copy of the tenants registered for periodic refresh.
func (r *MetricsReader) Watched() map[string]model.BusinessSector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]model.BusinessSector, len(r.watched))
	for tenantID, sector := range r.watched {
		out[tenantID] = sector
	}
	return out
}

// TransformMetrics derives the dashboard view from raw bridge counters.
func TransformMetrics(
	tenantID string,
	raw model.BridgeMetrics,
	session model.Session,
	sector model.BusinessSector,
	now time.Time,
	updateInterval int,
) model.DashboardMetrics {
	msgs := raw.MessagesToday
	orders := raw.OrdersToday

	whatsapp := model.WhatsAppMetrics{
		MessagesTotal:     raw.TotalMessages,
		MessagesToday:     msgs,
		MessagesWaiting:   raw.MessagesWaiting,
		MessagesReplied:   msgs - raw.MessagesWaiting,
		AIResponseTime:    orDefault(raw.AvgResponseTime, 2.1),
		AISuccessRate:     orDefault(raw.AISuccessRate, 94.5),
		AIConfidenceAvg:   0.85,
		HighIntentCount:   scale(msgs, 0.3),
		MediumIntentCount: scale(msgs, 0.4),
		LowIntentCount:    scale(msgs, 0.3),
	}

	return model.DashboardMetrics{
		TenantID: tenantID,
		Sector:   sector,
		WhatsApp: withSession(whatsapp, session),
		Business: model.BusinessMetrics{
			OrdersToday:          orders,
			OrdersYesterday:      scale(orders, 0.8),
			RevenueToday:         raw.RevenueToday,
			RevenueYesterday:     float64(int64(raw.RevenueToday * 0.85)),
			AvgOrderValue:        raw.RevenueToday / float64(max(orders, 1)),
			ConversionRate:       orDefault(raw.ConversionRate, 3.2),
			LeadsGenerated:       scale(msgs, 0.6),
			QuotesRequested:      scale(orders, 1.5),
			NewCustomersToday:    raw.NewCustomers,
			TotalCustomers:       284,
			RepeatCustomerRate:   68,
			CustomerSatisfaction: 4.7,
		},
		SectorKPI: sectorMetrics(sector, msgs, orders),
		Realtime: model.RealtimeMetrics{
			ActiveConversations: raw.ActiveConversations,
			AvgResponseTime:     orDefault(raw.AvgResponseTime, 1.2),
			MessagesPerHour:     msgs / 12,
			PeakHours:           append([]string(nil), peakHours...),
			CurrentLoad:         orDefault(raw.CurrentLoad, 25),
		},
		Trends: model.TrendMetrics{
			MessagesVsYesterday:  raw.VsYesterday.Messages,
			OrdersVsYesterday:    raw.VsYesterday.Orders,
			RevenueVsYesterday:   raw.VsYesterday.Revenue,
			CustomersVsYesterday: 12,
		},
		Geography: model.GeographyMetrics{
			TopZones: []model.Zone{
				{Name: "Cocody", Percentage: 35, MessageCount: scale(msgs, 0.35)},
				{Name: "Plateau", Percentage: 28, MessageCount: scale(msgs, 0.28)},
				{Name: "Yopougon", Percentage: 22, MessageCount: scale(msgs, 0.22)},
				{Name: "Marcory", Percentage: 15, MessageCount: scale(msgs, 0.15)},
			},
		},
		Meta: model.MetricsMeta{
			LastUpdated:    now,
			DataSource:     model.DataSourceLive,
			UpdateInterval: updateInterval,
		},
	}
}

func sectorMetrics(sector model.BusinessSector, msgs, orders int) model.SectorMetrics {
	switch sector {
	case model.SectorRestaurant:
		return model.SectorMetrics{
			ReservationsToday: scale(orders, 0.3),
			MenuViewsToday:    msgs * 2,
			DeliveryRequests:  scale(orders, 0.7),
		}
	case model.SectorCommerce:
		return model.SectorMetrics{
			ProductViewsToday: msgs * 3,
			CartAbandoned:     scale(orders, 0.4),
			StockAlerts:       2,
		}
	case model.SectorServices:
		return model.SectorMetrics{
			AppointmentsToday:  orders,
			QuotesGenerated:    scale(orders, 1.5),
			ServiceCompletions: scale(orders, 0.8),
		}
	case model.SectorHospitality:
		return model.SectorMetrics{
			BookingsToday: orders,
			OccupancyRate: 75,
			CheckInsToday: scale(orders, 0.9),
		}
	default:
		return model.SectorMetrics{}
	}
}

// DemoMetrics is the fixed dataset shown when neither live nor cached
// metrics exist.
func DemoMetrics(tenantID string, sector model.BusinessSector, now time.Time) model.DashboardMetrics {
	return model.DashboardMetrics{
		TenantID: tenantID,
		Sector:   sector,
		WhatsApp: model.WhatsAppMetrics{
			IsConnected:       true,
			PhoneNumber:       demoPhoneNumber,
			LastConnected:     &now,
			SessionStatus:     model.SessionStatusConnected,
			MessagesTotal:     1247,
			MessagesToday:     47,
			MessagesWaiting:   3,
			MessagesReplied:   44,
			AIResponseTime:    2.1,
			AISuccessRate:     94.5,
			AIConfidenceAvg:   0.85,
			HighIntentCount:   14,
			MediumIntentCount: 19,
			LowIntentCount:    14,
		},
		Business: model.BusinessMetrics{
			OrdersToday:          23,
			OrdersYesterday:      18,
			RevenueToday:         285000,
			RevenueYesterday:     195000,
			AvgOrderValue:        12391,
			ConversionRate:       3.2,
			LeadsGenerated:       28,
			QuotesRequested:      35,
			NewCustomersToday:    8,
			TotalCustomers:       284,
			RepeatCustomerRate:   68,
			CustomerSatisfaction: 4.7,
		},
		SectorKPI: model.SectorMetrics{
			ProductViewsToday: 141,
			CartAbandoned:     9,
			StockAlerts:       2,
		},
		Realtime: model.RealtimeMetrics{
			ActiveConversations: 12,
			AvgResponseTime:     1.2,
			MessagesPerHour:     4,
			PeakHours:           append([]string(nil), peakHours...),
			CurrentLoad:         25,
		},
		Trends: model.TrendMetrics{
			MessagesVsYesterday:  12,
			OrdersVsYesterday:    28,
			RevenueVsYesterday:   46,
			CustomersVsYesterday: 15,
		},
		Geography: model.GeographyMetrics{
			TopZones: []model.Zone{
				{Name: "Cocody", Percentage: 35, MessageCount: 16},
				{Name: "Plateau", Percentage: 28, MessageCount: 13},
				{Name: "Yopougon", Percentage: 22, MessageCount: 10},
				{Name: "Marcory", Percentage: 15, MessageCount: 7},
			},
		},
		Meta: model.MetricsMeta{
			LastUpdated:    now,
			DataSource:     model.DataSourceDemo,
			UpdateInterval: defaultUpdateIntervalSeconds,
		},
	}
}

func withSession(m model.WhatsAppMetrics, session model.Session) model.WhatsAppMetrics {
	m.IsConnected = session.IsConnected()
	m.PhoneNumber = session.PhoneNumber
	m.LastConnected = session.LastConnectedAt
	m.SessionStatus = session.Status
	return m
}

func scale(n int, factor float64) int {
	return int(float64(n) * factor)
}

func orDefault(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
