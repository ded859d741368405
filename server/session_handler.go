package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Toonbeat/core/audio"
	"Toonbeat/core/drag"
	"Toonbeat/core/player"
	"Toonbeat/core/scene"
	"Toonbeat/core/tracker"
	"Toonbeat/logger"
	"Toonbeat/model"
)

const (
	// WebSocket 配置
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 8192
	sendBuffer     = 64

	requestTimeout = 10 * time.Second
)

var errClientClosed = errors.New("client closed")

// SessionHandler serves one renderer per websocket: a scene plus an audio
// session whose media element lives in the renderer.
type SessionHandler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewSessionHandler(d Deps) *SessionHandler {
	return &SessionHandler{
		deps: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades GET /ws/session?project={id}[&mobile=1][&watcher=external].
// The renderer reports its viewports and then sends "load".
func (h *SessionHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID := q.Get("project")
	if projectID == "" {
		http.Error(w, "project is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket",
			logger.String("projectId", projectID),
			logger.ErrorField(err))
		return
	}

	c := newWSClient(conn)
	go c.writePump()

	rs := h.newRendererSession(projectID, c, q.Get("mobile") == "1", q.Get("watcher") == "external")
	defer rs.close()

	logger.Info("renderer connected", logger.String("projectId", projectID))
	c.readLoop(rs.handle)
	logger.Info("renderer disconnected", logger.String("projectId", projectID))
}

// wsClient owns the connection's write side.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue blocks while the send buffer is full and fails once the client is
// closed.
func (c *wsClient) enqueue(msg OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	}
}

func (c *wsClient) sendError(message string) {
	_ = c.enqueue(OutboundMessage{Type: MsgError, Message: message})
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) readLoop(handle func(InboundMessage)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket unexpected close", logger.ErrorField(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}
		handle(msg)
	}
}

// rendererSession binds one renderer connection to a scene.
type rendererSession struct {
	projectID string
	client    *wsClient
	element   *RemoteElement
	session   *player.Session
	scene     *scene.Scene
	desktop   *tracker.StaticContainer
	mobile    *tracker.StaticContainer
	deps      Deps
	states    <-chan player.State
	wg        sync.WaitGroup
}

func (h *SessionHandler) newRendererSession(projectID string, c *wsClient, withMobile, external bool) *rendererSession {
	cfg := h.deps.Config
	rs := &rendererSession{
		projectID: projectID,
		client:    c,
		deps:      h.deps,
		desktop:   tracker.NewStaticContainer(tracker.Viewport{}),
	}
	rs.element = NewRemoteElement(c.enqueue)
	rs.session = player.NewSession(rs.element, h.deps.Resolver, player.Options{
		RestartThreshold: cfg.RestartThreshold,
		PlayTimeout:      cfg.PlayTimeout,
	})

	var preloader *audio.Preloader
	if h.deps.Prefetch != nil {
		preloader = audio.NewPreloader(h.deps.Prefetch, cfg.PreloadAhead)
	}

	var mobile tracker.Container
	if withMobile {
		rs.mobile = tracker.NewStaticContainer(tracker.Viewport{})
		mobile = rs.mobile
	}

	rs.scene = scene.New(scene.Options{
		ProjectID:       projectID,
		Session:         rs.session,
		Preloader:       preloader,
		Store:           h.deps.Projects,
		Catalog:         h.deps.Tracks,
		Desktop:         rs.desktop,
		Mobile:          mobile,
		PollInterval:    cfg.PollInterval,
		ExternalWatcher: external,
		DragThreshold:   cfg.DragThresholdPx,
		TapMaxDuration:  cfg.TapMaxDuration,
		OnDragMove: func(t drag.Target, pos model.Position) {
			_ = c.enqueue(OutboundMessage{Type: MsgDrag, Target: &t, Position: &pos})
		},
		OnNoteTap: func(id string) {
			_ = c.enqueue(OutboundMessage{Type: MsgEditNote, ID: id})
		},
	})

	rs.states = rs.session.Subscribe()
	rs.wg.Add(1)
	go rs.pumpState()
	return rs
}

func (rs *rendererSession) pumpState() {
	defer rs.wg.Done()
	// Drains until Unsubscribe closes the channel, also after the client
	// is gone.
	for st := range rs.states {
		_ = rs.client.enqueue(OutboundMessage{Type: MsgState, State: &st})
	}
}

// close unblocks pending plays before stopping the scene, which waits for
// them.
func (rs *rendererSession) close() {
	rs.element.Close()
	rs.session.Stop()
	rs.scene.Close()
	rs.session.Wait()
	rs.session.Unsubscribe(rs.states)
	rs.wg.Wait()
	rs.client.close()
}

func (rs *rendererSession) container(surface string) (*tracker.StaticContainer, *tracker.Tracker, bool) {
	t, ok := rs.scene.Surface(surface)
	if !ok {
		return nil, nil, false
	}
	if t == rs.scene.Mobile() {
		return rs.mobile, t, true
	}
	return rs.desktop, t, true
}

func (rs *rendererSession) sendScene() {
	_ = rs.client.enqueue(OutboundMessage{Type: MsgScene, Scene: &SceneView{
		Markers: rs.scene.Registry().Markers(),
		Notes:   rs.scene.Registry().Notes(),
		Passed:  rs.scene.Passed().IDs(),
	}})
}

// background runs element round trips off the reader goroutine, which has
// to stay free to deliver their acks.
func (rs *rendererSession) background(name string, fn func(ctx context.Context) error) {
	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), player.DefaultPlayTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && !errors.Is(err, player.ErrSuperseded) {
			logger.Warn("session control failed", logger.String("action", name), logger.ErrorField(err))
			rs.client.sendError(err.Error())
		}
	}()
}

func (rs *rendererSession) handle(msg InboundMessage) {
	switch msg.Type {
	case MsgViewport:
		c, t, ok := rs.container(msg.Surface)
		if !ok || msg.Viewport == nil {
			rs.client.sendError("unknown surface " + msg.Surface)
			return
		}
		c.Set(*msg.Viewport)
		t.OnScroll()
		rs.scene.Positioner().Scroll(c)

	case MsgIntersections:
		if _, t, ok := rs.container(msg.Surface); ok {
			t.HandleIntersections(msg.Entries)
		}

	case MsgRegister:
		if _, t, ok := rs.container(msg.Surface); ok {
			t.Register(msg.MarkerID, tracker.FixedElement(msg.Height))
		}

	case MsgUnregister:
		if _, t, ok := rs.container(msg.Surface); ok {
			t.Unregister(msg.MarkerID)
		}

	case MsgMount:
		rs.scene.Mount()

	case MsgLoad:
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := rs.scene.LoadProject(ctx); err != nil {
			logger.Error("failed to load project", logger.String("projectId", rs.projectID), logger.ErrorField(err))
			rs.client.sendError(err.Error())
			return
		}
		rs.sendScene()

	case MsgSave:
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := rs.scene.Save(ctx); err != nil {
			rs.client.sendError(err.Error())
			return
		}
		_ = rs.client.enqueue(OutboundMessage{Type: MsgSaved})

	case MsgPointer:
		rs.handlePointer(msg)

	case MsgZone:
		if msg.Rect != nil {
			rs.scene.Positioner().RegisterZone(msg.ZoneID, *msg.Rect)
		} else {
			rs.scene.Positioner().UnregisterZone(msg.ZoneID)
		}

	case MsgMedia:
		if msg.Event != nil {
			rs.session.HandleEvent(*msg.Event)
		}

	case MsgAck:
		rs.element.Ack(msg.Seq, msg.Error)

	case MsgAddMarker:
		rs.addMarker(msg)

	case MsgDeleteMarker:
		if rs.scene.DeleteMarker(msg.ID) {
			rs.sendScene()
		}

	case MsgAddNote:
		pos := model.Position{}
		if msg.Position != nil {
			pos = *msg.Position
		}
		if _, err := rs.scene.AddNote(msg.Content, pos); err != nil {
			rs.client.sendError(err.Error())
			return
		}
		rs.sendScene()

	case MsgUpdateNote:
		if err := rs.scene.UpdateNote(msg.ID, msg.Content, msg.TextColor); err != nil {
			rs.client.sendError(err.Error())
			return
		}
		rs.sendScene()

	case MsgDeleteNote:
		if rs.scene.DeleteNote(msg.ID) {
			rs.sendScene()
		}

	case MsgControl:
		rs.control(msg)

	default:
		rs.client.sendError("unknown message type " + msg.Type)
	}
}

func (rs *rendererSession) handlePointer(msg InboundMessage) {
	p := rs.scene.Positioner()
	switch msg.Phase {
	case PhasePress:
		c, _, ok := rs.container(msg.Surface)
		if !ok || msg.Target == nil || !p.PressOn(c, *msg.Target, msg.Point) {
			_ = rs.client.enqueue(OutboundMessage{Type: MsgOutcome, Outcome: drag.OutcomeNone})
		}
	case PhaseMove:
		p.Move(msg.Point)
	case PhaseRelease:
		outcome := p.Release(msg.Point)
		_ = rs.client.enqueue(OutboundMessage{Type: MsgOutcome, Outcome: outcome})
		if outcome == drag.OutcomeMoved || outcome == drag.OutcomeDeleted {
			rs.sendScene()
		}
	case PhaseCancel:
		p.Cancel()
	}
}

func (rs *rendererSession) addMarker(msg InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	track, err := rs.deps.Tracks.GetByID(ctx, msg.TrackID)
	if err != nil {
		rs.client.sendError(err.Error())
		return
	}
	if track == nil {
		rs.client.sendError(fmt.Sprintf("%v: %s", errTrackNotFound, msg.TrackID))
		return
	}
	if _, err := rs.scene.AddTrackMarker(*track, msg.Y); err != nil {
		rs.client.sendError(err.Error())
		return
	}
	rs.sendScene()
}

func (rs *rendererSession) control(msg InboundMessage) {
	switch msg.Action {
	case ActionToggle:
		rs.background(msg.Action, rs.session.TogglePlay)
	case ActionNext:
		rs.background(msg.Action, rs.session.Next)
	case ActionPrevious:
		rs.background(msg.Action, rs.session.Previous)
	case ActionStop:
		rs.session.Stop()
	case ActionSeek:
		rs.session.Seek(msg.Value)
	case ActionVolume:
		rs.session.SetVolume(msg.Value)
	case ActionMute:
		rs.session.ToggleMute()
	default:
		rs.client.sendError("unknown action " + msg.Action)
	}
}
