// Package stubserver is an in-process stand-in for the shipper backend,
// used by tests. It speaks the same REST and socket dialects the production
// server does: bearer-token JSON endpoints, 410 on revoked access tokens,
// and a /ws-raw push channel that relays chat frames between connections.
package stubserver

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"shipline/internal/models"
)

const signingSecret = "stub-secret"

type tokenClaims struct {
	UserID string `json:"UserId"`
	Roles  string `json:"Roles"`
	jwt.RegisteredClaims
}

// Server is the stub backend. All fields guarded by mu unless noted.
type Server struct {
	HTTP *httptest.Server

	mu            sync.Mutex
	users         map[string]string // username -> password
	roles         map[string]string // username -> roles claim
	userIDs       map[string]int64
	revoked       map[string]struct{}
	shipments     map[int64]*models.Shipment
	payments      map[int64]*models.Payment
	messages      map[int64][]models.ChatMessage
	notifications map[int64][]models.Notification
	nextMessageID int64

	// Instrumentation for tests; read through the accessor methods.
	refreshCalls int
	sendCalls    int
	pingCount    int
	failRefresh  bool

	conns map[*websocket.Conn]int64
}

// RefreshCalls reports how many times the refresh endpoint was hit.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// SendCalls reports how many chat messages were persisted.
func (s *Server) SendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCalls
}

// PingCount reports how many keep-alive frames arrived.
func (s *Server) PingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingCount
}

// SetFailRefresh makes the refresh endpoint reject every call.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		users:         map[string]string{},
		roles:         map[string]string{},
		userIDs:       map[string]int64{},
		revoked:       map[string]struct{}{},
		shipments:     map[int64]*models.Shipment{},
		payments:      map[int64]*models.Payment{},
		messages:      map[int64][]models.ChatMessage{},
		notifications: map[int64][]models.Notification{},
		nextMessageID: 1,
		conns:         map[*websocket.Conn]int64{},
	}
	engine := gin.New()
	s.routes(engine)
	s.HTTP = httptest.NewServer(engine)
	return s
}

func (s *Server) Close() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = map[*websocket.Conn]int64{}
	s.mu.Unlock()
	s.HTTP.Close()
}

// BaseURL is the REST root, including the /api prefix.
func (s *Server) BaseURL() string {
	return s.HTTP.URL + "/api"
}

// SocketURL is the ws endpoint.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/ws-raw"
}

// AddUser registers an account the authenticate endpoint accepts.
func (s *Server) AddUser(username, password, roles string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
	s.roles[username] = roles
	s.userIDs[username] = userID
}

// AddShipment seeds a shipment (and its payment when PaymentID is set).
func (s *Server) AddShipment(sh models.Shipment, p *models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := sh
	s.shipments[sh.ShipmentID] = &copied
	if p != nil {
		pc := *p
		s.payments[p.PaymentID] = &pc
	}
}

// AddChatMessage seeds a stored message in a shipment's conversation.
func (s *Server) AddChatMessage(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = s.nextMessageID
	s.nextMessageID++
	s.messages[msg.ShipmentID] = append(s.messages[msg.ShipmentID], msg)
}

// AddNotification seeds a stored notification for a user.
func (s *Server) AddNotification(userID int64, n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = append(s.notifications[userID], n)
}

// Revoke makes the access token answer 410 until a refresh replaces it.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = struct{}{}
}

// Push delivers a raw frame to every socket connection of userID.
func (s *Server) Push(userID int64, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, uid := range s.conns {
		if uid == userID {
			conn.WriteMessage(websocket.TextMessage, frame)
		}
	}
}

// DropConnections closes every socket abruptly, simulating network loss.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = map[*websocket.Conn]int64{}
}

// ConnCount returns the number of live socket connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Messages returns the stored conversation for a shipment.
func (s *Server) Messages(shipmentID int64) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages[shipmentID]))
	copy(out, s.messages[shipmentID])
	return out
}

func (s *Server) issueToken(username string, ttl time.Duration) string {
	s.mu.Lock()
	userID := s.userIDs[username]
	roles := s.roles[username]
	s.mu.Unlock()
	claims := tokenClaims{
		UserID: strconv.FormatInt(userID, 10),
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(signingSecret))
	return signed
}

func (s *Server) parseToken(tokenString string) (*tokenClaims, bool) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(signingSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}
