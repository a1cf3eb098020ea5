package model

import (
	"time"
)

// BridgeMetrics is the raw counter payload reported by the bridge.
type BridgeMetrics struct {
	TotalMessages       int     `json:"total_messages"`
	MessagesToday       int     `json:"messages_today"`
	MessagesWaiting     int     `json:"messages_waiting"`
	AvgResponseTime     float64 `json:"avg_response_time"`
	AISuccessRate       float64 `json:"ai_success_rate"`
	OrdersToday         int     `json:"orders_today"`
	RevenueToday        float64 `json:"revenue_today"`
	NewCustomers        int     `json:"new_customers"`
	ConversionRate      float64 `json:"conversion_rate"`
	ActiveConversations int     `json:"active_conversations"`
	CurrentLoad         float64 `json:"current_load"`
	VsYesterday         struct {
		Messages float64 `json:"messages"`
		Orders   float64 `json:"orders"`
		Revenue  float64 `json:"revenue"`
	} `json:"vs_yesterday"`
}

type WhatsAppMetrics struct {
	IsConnected       bool          `json:"isConnected"`
	PhoneNumber       string        `json:"phoneNumber,omitempty"`
	LastConnected     *time.Time    `json:"lastConnected,omitempty"`
	SessionStatus     SessionStatus `json:"sessionStatus"`
	MessagesTotal     int           `json:"messagesTotal"`
	MessagesToday     int           `json:"messagesToday"`
	MessagesWaiting   int           `json:"messagesWaiting"`
	MessagesReplied   int           `json:"messagesReplied"`
	AIResponseTime    float64       `json:"aiResponseTime"`
	AISuccessRate     float64       `json:"aiSuccessRate"`
	AIConfidenceAvg   float64       `json:"aiConfidenceAvg"`
	HighIntentCount   int           `json:"highIntentCount"`
	MediumIntentCount int           `json:"mediumIntentCount"`
	LowIntentCount    int           `json:"lowIntentCount"`
}

type BusinessMetrics struct {
	OrdersToday          int     `json:"ordersToday"`
	OrdersYesterday      int     `json:"ordersYesterday"`
	RevenueToday         float64 `json:"revenueToday"`
	RevenueYesterday     float64 `json:"revenueYesterday"`
	AvgOrderValue        float64 `json:"avgOrderValue"`
	ConversionRate       float64 `json:"conversionRate"`
	LeadsGenerated       int     `json:"leadsGenerated"`
	QuotesRequested      int     `json:"quotesRequested"`
	NewCustomersToday    int     `json:"newCustomersToday"`
	TotalCustomers       int     `json:"totalCustomers"`
	RepeatCustomerRate   float64 `json:"repeatCustomerRate"`
	CustomerSatisfaction float64 `json:"customerSatisfaction"`
}

// SectorMetrics holds counters that only make sense for one business sector;
// the others stay zero.
type SectorMetrics struct {
	ReservationsToday  int     `json:"reservationsToday"`
	MenuViewsToday     int     `json:"menuViewsToday"`
	DeliveryRequests   int     `json:"deliveryRequests"`
	ProductViewsToday  int     `json:"productViewsToday"`
	CartAbandoned      int     `json:"cartAbandoned"`
	StockAlerts        int     `json:"stockAlerts"`
	AppointmentsToday  int     `json:"appointmentsToday"`
	QuotesGenerated    int     `json:"quotesGenerated"`
	ServiceCompletions int     `json:"serviceCompletions"`
	BookingsToday      int     `json:"bookingsToday"`
	OccupancyRate      float64 `json:"occupancyRate"`
	CheckInsToday      int     `json:"checkInsToday"`
}

type RealtimeMetrics struct {
	ActiveConversations int      `json:"activeConversations"`
	AvgResponseTime     float64  `json:"avgResponseTime"`
	MessagesPerHour     int      `json:"messagesPerHour"`
	PeakHours           []string `json:"peakHours"`
	CurrentLoad         float64  `json:"currentLoad"`
}

type TrendMetrics struct {
	MessagesVsYesterday  float64 `json:"messagesVsYesterday"`
	OrdersVsYesterday    float64 `json:"ordersVsYesterday"`
	RevenueVsYesterday   float64 `json:"revenueVsYesterday"`
	CustomersVsYesterday float64 `json:"customersVsYesterday"`
}

type Zone struct {
	Name         string  `json:"name"`
	Percentage   float64 `json:"percentage"`
	MessageCount int     `json:"messageCount"`
}

type GeographyMetrics struct {
	TopZones []Zone `json:"topZones"`
}

type MetricsMeta struct {
	LastUpdated    time.Time  `json:"lastUpdated"`
	DataSource     DataSource `json:"dataSource"`
	UpdateInterval int        `json:"updateInterval"`
}

type DashboardMetrics struct {
	TenantID  string           `json:"tenantId"`
	Sector    BusinessSector   `json:"sectorName"`
	WhatsApp  WhatsAppMetrics  `json:"whatsapp"`
	Business  BusinessMetrics  `json:"business"`
	SectorKPI SectorMetrics    `json:"sector"`
	Realtime  RealtimeMetrics  `json:"realtime"`
	Trends    TrendMetrics     `json:"trends"`
	Geography GeographyMetrics `json:"geography"`
	Meta      MetricsMeta      `json:"meta"`
}
