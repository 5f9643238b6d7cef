package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/metrics"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/util"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 8192
	subscriberBuffer = 256
	accessCacheTTL   = 30 * time.Second
	accessLookupWait = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SubscribeMessage is the first frame a change feed client sends.
type SubscribeMessage struct {
	Subscriptions []SubscriptionRequest `json:"subscriptions"`
}

type SubscriptionRequest struct {
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// FeedFrame is every frame the server writes.
type FeedFrame struct {
	Type   string            `json:"type"`
	Change *broadcast.Change `json:"change,omitempty"`
	Error  string            `json:"error,omitempty"`
}

const (
	frameSubscribed = "subscribed"
	frameChange     = "change"
	frameError      = "error"
)

// ChangeFeedHandler streams committed changes over a websocket.
type ChangeFeedHandler struct {
	bus       *broadcast.Bus
	evaluator *access.Evaluator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewChangeFeedHandler(bus *broadcast.Bus, members access.MembershipReader, m *metrics.Metrics, logger *zap.Logger) *ChangeFeedHandler {
	return &ChangeFeedHandler{
		bus:       bus,
		evaluator: access.NewEvaluator(members),
		metrics:   m,
		logger:    logger,
	}
}

// Subscribe godoc
// @Summary      Change feed
// @Description  Upgrades to a websocket. The client sends {"subscriptions":[{"table":"tasks","filter":"project_id=eq.<id>"}]}
// @Description  and receives {"type":"change","change":{...}} frames for rows in projects it can read.
// @Tags         realtime
// @Param        access_token query string false "Bearer token for clients that cannot set headers"
// @Success      101
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /changes/ws [get]
func (h *ChangeFeedHandler) Subscribe(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	subs, err := readSubscriptions(conn)
	if err != nil {
		h.writeFrame(conn, FeedFrame{Type: frameError, Error: err.Error()})
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid subscription"),
			time.Now().Add(writeWait))
		return
	}

	// The feed outlives any request deadline.
	ctx := context.WithoutCancel(c.Request.Context())
	sub := h.bus.Subscribe(subs, subscriberBuffer, newProjectGate(ctx, h.evaluator, userID, h.logger).allow)
	h.metrics.AddChangeSubscribers(1)
	defer func() {
		h.bus.Unsubscribe(sub)
		h.metrics.AddChangeSubscribers(-1)
	}()

	h.logger.Info("Change feed subscribed",
		zap.String("user_id", userID.String()),
		zap.Int("subscriptions", len(subs)),
	)
	if err := h.writeFrame(conn, FeedFrame{Type: frameSubscribed}); err != nil {
		return
	}

	done := make(chan struct{})
	go readPump(conn, done)
	h.writePump(conn, sub, done)
}

func readSubscriptions(conn *websocket.Conn) ([]broadcast.Subscription, error) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	var msg SubscribeMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, errors.New("expected a subscribe message")
	}
	if len(msg.Subscriptions) == 0 {
		return nil, errors.New("at least one subscription is required")
	}
	subs := make([]broadcast.Subscription, 0, len(msg.Subscriptions))
	for _, s := range msg.Subscriptions {
		if s.Table == "" {
			return nil, errors.New("subscription table is required")
		}
		f, err := broadcast.ParseFilter(s.Filter)
		if err != nil {
			return nil, err
		}
		subs = append(subs, broadcast.Subscription{Table: s.Table, Filter: f})
	}
	return subs, nil
}

// readPump consumes control frames until the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ChangeFeedHandler) writePump(conn *websocket.Conn, sub *broadcast.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.writeFrame(conn, FeedFrame{Type: frameChange, Change: &change}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *ChangeFeedHandler) writeFrame(conn *websocket.Conn, frame FeedFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to encode feed frame", zap.Error(err))
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// projectMembersTable changes carry the member's user id as row id.
const projectMembersTable = "project_members"

// projectGate remembers read decisions per project for a short while so that
// a busy feed does not hit the membership table on every change. A change to
// the user's own project membership drops the cached decision for that project.
type projectGate struct {
	ctx       context.Context
	evaluator *access.Evaluator
	userID    uuid.UUID
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	cache map[uuid.UUID]gateEntry
}

type gateEntry struct {
	allowed bool
	expires time.Time
}

func newProjectGate(ctx context.Context, evaluator *access.Evaluator, userID uuid.UUID, logger *zap.Logger) *projectGate {
	return &projectGate{
		ctx:       ctx,
		evaluator: evaluator,
		userID:    userID,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[uuid.UUID]gateEntry),
	}
}

// allow admits only changes to rows of projects the user can currently read.
func (g *projectGate) allow(c broadcast.Change) bool {
	if c.ProjectID == nil {
		return false
	}
	id := *c.ProjectID
	now := g.now()

	g.mu.Lock()
	if c.Table == projectMembersTable && c.RowID == g.userID {
		delete(g.cache, id)
	}
	e, ok := g.cache[id]
	g.mu.Unlock()
	if ok && now.Before(e.expires) {
		return e.allowed
	}

	ctx, cancel := context.WithTimeout(g.ctx, accessLookupWait)
	defer cancel()
	_, err := g.evaluator.Authorize(ctx, g.userID, domain.ScopeProject, id, access.ActionRead)
	allowed := err == nil
	if err != nil && !isAccessDenial(err) {
		g.logger.Warn("Change feed access check failed", zap.String("project_id", id.String()), zap.Error(err))
		return false
	}

	g.mu.Lock()
	g.cache[id] = gateEntry{allowed: allowed, expires: now.Add(accessCacheTTL)}
	g.mu.Unlock()
	return allowed
}

func isAccessDenial(err error) bool {
	return errors.Is(err, response.ErrNotFound) || errors.Is(err, response.ErrForbidden)
}
