package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matryer/way"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wfunc/footgame/auth"
	"github.com/wfunc/footgame/broadcast"
	"github.com/wfunc/footgame/config"
	"github.com/wfunc/footgame/logger"
	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/monitor"
	"github.com/wfunc/footgame/network"
	"github.com/wfunc/footgame/persistence"
	"github.com/wfunc/footgame/room"
	footgame_rpc "github.com/wfunc/footgame/rpc"
	"github.com/wfunc/footgame/services"
	"github.com/wfunc/footgame/session"
	"github.com/wfunc/footgame/timer"
)

const tokenHandshakeTimeout = 30 * time.Second

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	router         *way.Router
	roomManager    *room.Manager
	sessionManager *session.Manager
	userService    *services.UserService
	authService    *auth.Service
	broadcaster    *broadcast.RoomBroadcaster
	rpcServer      *footgame_rpc.Server
	monitor        *monitor.Monitor
	timers         *timer.Manager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		userService:    services.NewUserService(db),
		monitor:        monitor.NewMonitor("footgame"),
		timers:         timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.authService = auth.NewService(cfg.Auth, s.userService)

	s.roomManager = room.NewManager(s.timers, cfg.Room.PendingTTL)
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.monitor)
	s.roomManager.SetBroadcaster(s.broadcaster)
	s.roomManager.SetRecorder(s.userService)

	rpcServer, err := footgame_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(footgame_rpc.NewAdminService(s.userService, s.roomManager))

	s.routes()
	return s
}

func (s *GameServer) routes() {
	s.router = way.NewRouter()
	s.router.HandleFunc("POST", "/oauth/login", s.handleLogin)
	s.router.HandleFunc("POST", "/oauth/refresh", s.handleRefresh)
	s.router.HandleFunc("POST", "/game", s.handleCreateRoom)
	s.router.HandleFunc("GET", "/game/:room_id/qr", s.handleRoomQR)
	s.router.HandleFunc("GET", "/game/ws/:room_id", s.handleWebSocket)
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, s.router)
}

func (s *GameServer) Shutdown() {
	s.broadcaster.BroadcastToAll(network.Info("伺服器即將關閉。"))
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

// --- HTTP handlers ---

func (s *GameServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token, err := s.authService.Login(r.Context(), body.Code)
	if err != nil {
		logger.Log.Infow("login failed", "error", err)
		http.Error(w, "Unauthorize", http.StatusUnauthorized)
		return
	}
	writeJSON(w, token)
}

func (s *GameServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		http.Error(w, "Unauthorize", http.StatusUnauthorized)
		return
	}

	token, err := s.authService.Refresh(r.Context(), tokenString)
	if err != nil {
		http.Error(w, "Unauthorize", http.StatusUnauthorized)
		return
	}
	writeJSON(w, token)
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var settings models.GameSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id, err := s.roomManager.CreateRoom(settings)
	if err != nil {
		http.Error(w, "invalid game settings", http.StatusBadRequest)
		return
	}

	logger.Log.Infow("room created", "room", id,
		"width", settings.Width, "height", settings.Height,
		"capacity", settings.Capacity())
	writeJSON(w, id)
}

// handleRoomQR serves a QR code of the join link, for sharing a lobby
// across the table.
func (s *GameServer) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	roomID := way.Param(r.Context(), "room_id")
	if !s.roomManager.Has(roomID) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	link := strings.TrimSuffix(s.cfg.Server.PublicURL, "/") + "/room/" + roomID
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// --- websocket ---

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := way.Param(r.Context(), "room_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := network.NewWSConnection(conn)
	defer wsConn.Close()

	// 第一帧是 bearer token
	tokenString, err := wsConn.ReadText(tokenHandshakeTimeout)
	if err != nil {
		return
	}
	user, err := s.authService.Verify(tokenString)
	if err != nil {
		wsConn.SendJSON(network.Reject("未授權。"))
		return
	}

	sess := session.NewSession(uuid.New().String(), wsConn, user)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()
	logger.Log.Infow("participant connected",
		"session", sess.ID, "user", user.ID, "remote", wsConn.RemoteAddr().String())

	defer func() {
		s.sessionManager.Remove(sess.ID)
		s.monitor.DecOnlinePlayers()
		logger.Log.Infow("participant disconnected", "session", sess.ID, "user", user.ID)
	}()

	rm, err := s.roomManager.Resolve(roomID)
	if err != nil {
		wsConn.SendJSON(network.Reject("房間不存在。"))
		return
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())

	participant, err := rm.Join(sess)
	if err != nil {
		wsConn.SendJSON(joinError(err))
		s.cleanupRoom(rm)
		return
	}

	s.readLoop(rm, participant, wsConn)

	if rm.Exit(participant) {
		s.roomManager.Remove(rm.ID)
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())
}

// readLoop decodes one control message at a time and hands it to the room
// for sequential handling. It is the only place a disconnect is detected.
func (s *GameServer) readLoop(rm *room.Room, p *room.Participant, conn network.Connection) {
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			msg, err := conn.ReadMessage()
			if err != nil {
				if errors.Is(err, network.ErrMalformedMessage) {
					// 协议违规：丢弃该帧，连接保留
					logger.Log.Debugw("dropping malformed frame", "room", rm.ID, "error", err)
					continue
				}
				return
			}

			s.monitor.IncMessagesReceived()
			start := time.Now()
			rm.HandleMessage(p, msg)
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

// cleanupRoom discards a room that ended up empty after a failed join
// (e.g. the resolving connection was rejected before entering).
func (s *GameServer) cleanupRoom(rm *room.Room) {
	if len(rm.Recipients()) == 0 {
		s.roomManager.Remove(rm.ID)
		s.monitor.SetActiveRooms(s.roomManager.Count())
	}
}

func joinError(err error) *network.Envelope {
	switch {
	case errors.Is(err, room.ErrAlreadyStarted):
		return network.Reject("遊戲已經開始了。")
	case errors.Is(err, room.ErrAlreadyInRoom):
		return network.Reject("你已經在遊戲裡了。")
	default:
		return network.Reject("房間不存在。")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authorization := r.Header.Get("Authorization")
	scheme, param, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || param == "" {
		return "", false
	}
	return param, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("Error encoding response: %v", err)
	}
}
