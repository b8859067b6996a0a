package stubserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shipline/internal/domain"
	"shipline/internal/models"
)

func (s *Server) routes(engine *gin.Engine) {
	engine.GET("/ws-raw", s.handleSocket)

	api := engine.Group("/api")
	api.POST("/v1/auth/authenticate", s.handleAuthenticate)
	api.POST("/v1/auth/refresh-token", s.handleRefresh)

	authed := api.Group("", s.authRequired())
	authed.GET("/shipment/shipper/listShippment", s.handleListShipments(true))
	// /shipment/view mixes static children (listByStatus, map_direction)
	// with a bare id, which gin's tree cannot express; dispatch by hand.
	authed.GET("/shipment/view/*path", s.handleShipmentView)
	authed.POST("/shipment/activate/shipping", s.handleActivate(domain.StatusShipping))
	authed.POST("/shipment/activate/success", s.handleActivate(domain.StatusSuccess))
	authed.POST("/shipment/activate/cancel", s.handleActivate(domain.StatusCancelled))
	authed.PUT("/shipment/update-status/:id", s.handleUpdateStatus)
	authed.GET("/payment/view/:id", s.handleGetPayment)
	authed.GET("/notifications/user/:id", s.handleListNotifications)
	authed.PUT("/notifications/read/*path", s.handleNotificationRead)
	authed.GET("/chat/messages/shipment/:id", s.handleChatMessages)
	authed.POST("/chat/send", s.handleChatSend)
}

// handleShipmentView dispatches /shipment/view/listByStatus,
// /shipment/view/map_direction/:id, and /shipment/view/:id.
func (s *Server) handleShipmentView(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	switch {
	case path == "listByStatus":
		s.handleListShipments(false)(c)
	case strings.HasPrefix(path, "map_direction/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(path, "map_direction/"), 10, 64)
		s.handleMapDirection(c, id)
	default:
		id, _ := strconv.ParseInt(path, 10, 64)
		s.handleGetShipment(c, id)
	}
}

// handleNotificationRead dispatches /notifications/read/all/:userId and
// /notifications/read/:id.
func (s *Server) handleNotificationRead(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if strings.HasPrefix(path, "all/") {
		id, _ := strconv.ParseInt(strings.TrimPrefix(path, "all/"), 10, 64)
		s.handleMarkAllRead(c, id)
		return
	}
	s.handleMarkRead(c, path)
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return ""
}

// authRequired mirrors the production contract: missing/invalid token is
// 401, a revoked token is 410 so clients refresh and retry.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing authorization header"})
			return
		}
		s.mu.Lock()
		_, revoked := s.revoked[token]
		s.mu.Unlock()
		if revoked {
			c.AbortWithStatusJSON(http.StatusGone, gin.H{"message": "token expired"})
			return
		}
		claims, ok := s.parseToken(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		userID, _ := strconv.ParseInt(claims.UserID, 10, 64)
		c.Set("user_id", userID)
		c.Next()
	}
}

func (s *Server) handleAuthenticate(c *gin.Context) {
	var req struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	s.mu.Lock()
	password, ok := s.users[req.UserName]
	s.mu.Unlock()
	if !ok || password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "wrong username or password"})
		return
	}
	c.JSON(http.StatusOK, models.TokenPair{
		AccessToken:  s.issueToken(req.UserName, 15*time.Minute),
		RefreshToken: s.issueToken(req.UserName, 168*time.Hour),
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.mu.Lock()
	s.refreshCalls++
	fail := s.failRefresh
	s.mu.Unlock()
	if fail {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh rejected"})
		return
	}
	claims, ok := s.parseToken(bearer(c))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, models.TokenPair{
		AccessToken: s.issueToken(claims.Subject, 15*time.Minute),
	})
}

func (s *Server) handleListShipments(scoped bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
		userID, _ := strconv.ParseInt(c.Query("userId"), 10, 64)

		s.mu.Lock()
		var list []models.Shipment
		for _, sh := range s.shipments {
			if sh.Status != status {
				continue
			}
			if scoped && sh.ShipperID != userID {
				continue
			}
			list = append(list, *sh)
		}
		s.mu.Unlock()

		total := len(list)
		totalPage := (total + limit - 1) / limit
		if totalPage == 0 {
			totalPage = 1
		}
		start := (page - 1) * limit
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}
		c.JSON(http.StatusOK, models.ShipmentPage{
			ListShipment: list[start:end],
			Total:        total,
			TotalPage:    totalPage,
		})
	}
}

func (s *Server) handleGetShipment(c *gin.Context, id int64) {
	s.mu.Lock()
	sh, ok := s.shipments[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "shipment not found"})
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (s *Server) handleMapDirection(c *gin.Context, id int64) {
	s.mu.Lock()
	_, ok := s.shipments[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "shipment not found"})
		return
	}
	c.JSON(http.StatusOK, models.MapDirection{
		ShipmentID: id,
		Origin:     models.GeoPoint{Latitude: 21.0285, Longitude: 105.8542},
		Target:     models.GeoPoint{Latitude: 21.0378, Longitude: 105.8342},
		Points: []models.GeoPoint{
			{Latitude: 21.0285, Longitude: 105.8542},
			{Latitude: 21.0378, Longitude: 105.8342},
		},
	})
}

func (s *Server) handleActivate(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID     int64 `json:"userId"`
			ShipmentID int64 `json:"shipmentId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		sh, ok := s.shipments[req.ShipmentID]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "shipment not found"})
			return
		}
		sh.Status = status
		if status == domain.StatusShipping {
			sh.ShipperID = req.UserID
		}
		c.JSON(http.StatusOK, sh)
	}
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "shipment not found"})
		return
	}
	sh.Status = req.Status
	c.JSON(http.StatusOK, sh)
}

func (s *Server) handleGetPayment(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	p, ok := s.payments[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "payment not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	list := append([]models.Notification(nil), s.notifications[id]...)
	s.mu.Unlock()
	var out models.NotificationList
	out.Body.Notifications = list
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMarkRead(c *gin.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, list := range s.notifications {
		for i := range list {
			if list[i].ID == id {
				s.notifications[userID][i].IsRead = true
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleMarkAllRead(c *gin.Context, id int64) {
	s.mu.Lock()
	for i := range s.notifications[id] {
		s.notifications[id][i].IsRead = true
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleChatMessages(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	list := append([]models.ChatMessage(nil), s.messages[id]...)
	s.mu.Unlock()
	if list == nil {
		list = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleChatSend(c *gin.Context) {
	var msg models.ChatMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	s.mu.Lock()
	msg.ID = s.nextMessageID
	s.nextMessageID++
	if msg.CreatedAt == 0 {
		msg.CreatedAt = models.NowMillis()
	}
	s.messages[msg.ShipmentID] = append(s.messages[msg.ShipmentID], msg)
	s.sendCalls++
	s.mu.Unlock()
	c.JSON(http.StatusOK, msg)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSocket accepts a push connection and relays non-PING client frames
// to the user's other connections, the way the real server mirrors chat
// messages.
func (s *Server) handleSocket(c *gin.Context) {
	token := c.Query("token")
	userID, _ := strconv.ParseInt(c.Query("userId"), 10, 64)
	if token == "" || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "token and userId required"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[conn] = userID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// First frame is the handshake; just consume it.
	if _, _, err := conn.ReadMessage(); err != nil {
		return
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := models.DecodeFrame(raw)
		if err != nil {
			continue
		}
		if frame.Type == domain.FrameTypePing {
			s.mu.Lock()
			s.pingCount++
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		for other, uid := range s.conns {
			if other != conn && uid == userID {
				other.WriteMessage(websocket.TextMessage, raw)
			}
		}
		s.mu.Unlock()
	}
}
