package model

type SessionStatus string

const (
	SessionStatusIdle         SessionStatus = "idle"
	SessionStatusConnecting   SessionStatus = "connecting"
	SessionStatusQRPending    SessionStatus = "qr_pending"
	SessionStatusConnected    SessionStatus = "connected"
	SessionStatusDisconnected SessionStatus = "disconnected"
	SessionStatusError        SessionStatus = "error"
)

type LiveMessageStatus string

const (
	LiveMessageWaiting      LiveMessageStatus = "waiting"
	LiveMessageAIReplied    LiveMessageStatus = "ai_replied"
	LiveMessageHumanReplied LiveMessageStatus = "human_replied"
)

type BusinessSector string

const (
	SectorRestaurant  BusinessSector = "restaurant"
	SectorCommerce    BusinessSector = "commerce"
	SectorServices    BusinessSector = "services"
	SectorHospitality BusinessSector = "hospitality"
)

func (s BusinessSector) Valid() bool {
	switch s {
	case SectorRestaurant, SectorCommerce, SectorServices, SectorHospitality:
		return true
	}
	return false
}

type Intent string

const (
	IntentHigh   Intent = "HIGH"
	IntentMedium Intent = "MEDIUM"
	IntentLow    Intent = "LOW"
)

type DataSource string

const (
	DataSourceLive   DataSource = "live"
	DataSourceCached DataSource = "cached"
	DataSourceDemo   DataSource = "demo"
)

type SessionEventType string

const (
	SessionEventConnecting   SessionEventType = "session_connecting"
	SessionEventQRGenerated  SessionEventType = "qr_generated"
	SessionEventConnected    SessionEventType = "session_connected"
	SessionEventError        SessionEventType = "session_error"
	SessionEventDisconnected SessionEventType = "session_disconnected"
	SessionEventReleased     SessionEventType = "session_released"
)

// EventTypeForStatus maps a session status to the event recorded when a
// session enters it.
func EventTypeForStatus(status SessionStatus) SessionEventType {
	switch status {
	case SessionStatusConnecting:
		return SessionEventConnecting
	case SessionStatusQRPending:
		return SessionEventQRGenerated
	case SessionStatusConnected:
		return SessionEventConnected
	case SessionStatusError:
		return SessionEventError
	case SessionStatusDisconnected:
		return SessionEventDisconnected
	default:
		return SessionEventReleased
	}
}
