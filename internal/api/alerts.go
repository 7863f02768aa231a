package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/domain"
)

const (
	alertBufferSize  = 16
	alertWriteWait   = 10 * time.Second
	alertPongWait    = 60 * time.Second
	alertPingPeriod  = (alertPongWait * 9) / 10
	alertMessageType = "high_risk_alert"
)

// Alert is the message pushed to alert stream subscribers.
type Alert struct {
	Type              string           `json:"type"`
	AssessmentID      string           `json:"assessment_id"`
	PatientID         string           `json:"patient_id"`
	PregnancyID       string           `json:"pregnancy_id"`
	RiskLevel         domain.RiskLevel `json:"risk_level"`
	OverallScore      float64          `json:"overall_risk_score"`
	Timestamp         time.Time        `json:"timestamp"`
	NextAssessmentDue time.Time        `json:"next_assessment_due"`
	Recommendations   []string         `json:"recommendations"`
}

// NewAlert summarizes an assessment for the alert stream.
func NewAlert(record *domain.AssessmentRecord) Alert {
	titles := make([]string, 0, len(record.Recommendations))
	for _, r := range record.Recommendations {
		titles = append(titles, r.Title)
	}
	return Alert{
		Type:              alertMessageType,
		AssessmentID:      record.AssessmentID,
		PatientID:         record.PatientID,
		PregnancyID:       record.PregnancyID,
		RiskLevel:         record.RiskLevel,
		OverallScore:      record.OverallScore,
		Timestamp:         record.Timestamp,
		NextAssessmentDue: record.NextAssessmentDue,
		Recommendations:   titles,
	}
}

type subscriber struct {
	id        string
	patientID string
	send      chan Alert
}

// AlertHub fans high-risk assessments out to WebSocket subscribers. It
// implements service.AlertPublisher. Slow subscribers drop alerts rather than
// block the publisher.
type AlertHub struct {
	upgrader websocket.Upgrader
	log      *logrus.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

// NewAlertHub creates an empty hub.
func NewAlertHub(logger *logrus.Logger) *AlertHub {
	return &AlertHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:         logger,
		subscribers: make(map[string]*subscriber),
	}
}

// Publish delivers an alert to every subscriber whose filter matches.
func (h *AlertHub) Publish(record *domain.AssessmentRecord) {
	alert := NewAlert(record)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		if sub.patientID != "" && sub.patientID != alert.PatientID {
			continue
		}
		select {
		case sub.send <- alert:
		default:
			h.log.WithFields(logrus.Fields{
				"subscriber":    sub.id,
				"assessment_id": alert.AssessmentID,
			}).Warn("Alert subscriber is not keeping up, dropping alert")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *AlertHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *AlertHub) register(patientID string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{
		id:        uuid.NewString(),
		patientID: patientID,
		send:      make(chan Alert, alertBufferSize),
	}
	h.subscribers[sub.id] = sub
	return sub, true
}

func (h *AlertHub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(sub.send)
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *AlertHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.send)
	}
}

// ServeWS upgrades the request and streams alerts until the client goes away.
// An optional patient_id query parameter restricts the stream to one patient.
func (h *AlertHub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sub, ok := h.register(c.Query("patient_id"))
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	h.log.WithFields(logrus.Fields{
		"subscriber": sub.id,
		"patient_id": sub.patientID,
	}).Info("Alert subscriber connected")

	go h.readPump(conn, sub)
	h.writePump(conn, sub)
}

// readPump discards client messages and unregisters on disconnect.
func (h *AlertHub) readPump(conn *websocket.Conn, sub *subscriber) {
	defer h.unregister(sub.id)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(alertPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(alertPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertHub) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(alertPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		h.log.WithField("subscriber", sub.id).Info("Alert subscriber disconnected")
	}()

	for {
		select {
		case alert, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(alertWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(alert); err != nil {
				h.unregister(sub.id)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(alertWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(sub.id)
				return
			}
		}
	}
}
