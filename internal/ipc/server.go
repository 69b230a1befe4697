package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/focusmute/internal/daemon"
	"github.com/1broseidon/focusmute/internal/history"
	"github.com/1broseidon/focusmute/internal/policy"
	"github.com/1broseidon/focusmute/internal/runtimepath"
)

const opTimeout = 5 * time.Second

// HistoryReader is the part of the history store the server needs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int, app string) ([]history.Entry, error)
}

// ServerOptions configure optional server collaborators.
type ServerOptions struct {
	// SocketPath overrides the runtime socket location.
	SocketPath string
	Backend    string
	// History may be nil when recording is disabled.
	History HistoryReader
	// Reload re-reads configuration and the policy file.
	Reload func() error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	runner       *daemon.Runner
	backend      string
	history      HistoryReader
	reload       func() error
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(runner *daemon.Runner, opts ServerOptions) (*Server, error) {
	socketPath := opts.SocketPath
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		runner:     runner,
		backend:    opts.Backend,
		history:    opts.History,
		reload:     opts.Reload,
		startTime:  time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	// Accept connections
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	// Parse request
	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	// Handle command
	resp := s.handleCommand(req)

	// Send response
	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandListSessions:
		return s.handleListSessions()
	case CommandGetPolicy:
		return s.handleGetPolicy()
	case CommandSetLock:
		var p LockPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.SetLocked(p.Locked)
		})
	case CommandAddException:
		var p AppPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.AddException(p.App)
		})
	case CommandRemoveException:
		var p AppPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.RemoveException(p.App)
		})
	case CommandSetOverride:
		var p OverridePayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.SetOverride(p.App, p.Muted)
		})
	case CommandClearOverride:
		var p AppPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.ClearOverride(p.App)
		})
	case CommandSetVolume:
		var p VolumePayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.SetVolume(p.App, p.Volume)
		})
	case CommandClearVolume:
		var p AppPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.ClearVolume(p.App)
		})
	case CommandSetFlag:
		var p FlagPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			flag, err := policy.ParseFlag(p.Flag)
			if err != nil {
				return fmt.Errorf("%w: %q", err, p.Flag)
			}
			return st.SetFlag(flag, p.Value)
		})
	case CommandAddGroup:
		var p GroupPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.AddMuteGroup(p.Apps)
		})
	case CommandRemoveGroup:
		var p RemoveGroupPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.RemoveMuteGroup(p.Index)
		})
	case CommandAddPIDMatch:
		var p AppPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.AddPIDMatch(p.App)
		})
	case CommandRemovePIDMatch:
		var p AppPayload
		return s.mutate(req.Payload, &p, func(st *policy.State) error {
			return st.RemovePIDMatch(p.App)
		})
	case CommandGetHistory:
		return s.handleGetHistory(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// mutate decodes payload into dst and runs fn on the runner goroutine.
func (s *Server) mutate(payload json.RawMessage, dst interface{}, fn func(st *policy.State) error) *Response {
	if len(payload) == 0 {
		return NewErrorResponse("payload is required")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid payload: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.runner.Do(ctx, fn); err != nil {
		return NewErrorResponse(err.Error())
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

// handleReload reloads the configuration and policy
func (s *Server) handleReload() *Response {
	log.Println("IPC: Received RELOAD command")

	if s.reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload: %v", err))
	}

	log.Println("IPC: Reloaded successfully")

	resp, _ := NewOKResponse(nil)
	return resp
}

// handleGetStatus returns current daemon status
func (s *Server) handleGetStatus() *Response {
	st := s.runner.Status()
	last := st.Last

	status := StatusData{
		DaemonRunning:      true,
		Backend:            s.backend,
		Locked:             last.Locked,
		UptimeSeconds:      int64(time.Since(s.startTime).Seconds()),
		Ticks:              st.Ticks,
		TickIntervalMillis: st.Interval.Milliseconds(),
		SessionCount:       len(last.Decisions),
		ForegroundPID:      last.ForegroundPID,
		ForegroundApp:      last.ForegroundApp,
		ZeroActivityCount:  last.ZeroActivityCount,
		AnyExceptionActive: last.AnyExceptionActive,
		LastTickMillis:     last.Duration.Milliseconds(),
	}

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleListSessions() *Response {
	last := s.runner.LastReport()
	data := SessionsData{
		Locked:        last.Locked,
		ForegroundPID: last.ForegroundPID,
		ForegroundApp: last.ForegroundApp,
		Sessions:      last.Decisions,
	}
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleGetPolicy() *Response {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var doc policy.Document
	err := s.runner.Do(ctx, func(st *policy.State) error {
		doc = st.Document()
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to read policy: %v", err))
	}

	resp, err := NewOKResponse(doc)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleGetHistory(payload json.RawMessage) *Response {
	if s.history == nil {
		return NewErrorResponse("history is disabled")
	}
	var req HistoryPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid history payload: %v", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	entries, err := s.history.Recent(ctx, req.Limit, policy.NormalizeName(req.App))
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to read history: %v", err))
	}

	resp, _ := NewOKResponse(HistoryData{Entries: entries})
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
