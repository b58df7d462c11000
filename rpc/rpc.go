package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/footgame/logger"
	"github.com/wfunc/footgame/room"
	"github.com/wfunc/footgame/services"
)

// Server manages the RPC listener for the admin surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc.
type AdminService struct {
	users *services.UserService
	rooms *room.Manager
}

func NewAdminService(users *services.UserService, rooms *room.Manager) *AdminService {
	return &AdminService{users: users, rooms: rooms}
}

type UserStatsArgs struct {
	UserID int64
}

type UserStatsReply struct {
	Data map[string]interface{}
}

// GetUserStats returns one user's profile and match statistics.
func (a *AdminService) GetUserStats(args *UserStatsArgs, reply *UserStatsReply) error {
	data, err := a.users.GetUserWithStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Data = data
	return nil
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	IDs []string
}

// ListRooms returns the identifiers of every live room.
func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.IDs = a.rooms.RoomIDs()
	return nil
}
