// Package daemon is the policy enforcement point: a local IPC server that
// re-checks every request against the access policy before running it.
package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// State is the listener lifecycle.
type State int32

const (
	StateStopped State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "stopped"
}

// Config holds the server's collaborators and settings.
type Config struct {
	Endpoint     string
	SocketGroup  string
	SandboxDir   string
	MaxExecution time.Duration

	Policy   ports.PolicyChecker
	Executor ports.CommandExecutor
	Audit    ports.AuditLogger
	Logger   ports.Logger
}

// Server accepts one request per connection and handles each connection on
// its own goroutine.
type Server struct {
	cfg     Config
	state   atomic.Int32
	wg      sync.WaitGroup
	sandbox string
	owned   bool
}

// NewServer validates the configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Policy == nil || cfg.Executor == nil || cfg.Audit == nil {
		return nil, errors.New("daemon.Server dependencies not satisfied")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxExecution <= 0 {
		cfg.MaxExecution = domain.DefaultExecutionTimeout
	}
	return &Server{cfg: cfg}, nil
}

// State reports whether the server is currently accepting connections.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Endpoint returns the configured endpoint path.
func (s *Server) Endpoint() string {
	return s.cfg.Endpoint
}

// Run binds the endpoint and serves until ctx is cancelled. A bind failure is
// returned immediately and never retried.
func (s *Server) Run(ctx context.Context) error {
	ln, err := Listen(s.cfg.Endpoint, s.cfg.SocketGroup, s.cfg.Logger)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Endpoint, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight requests to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.prepareSandbox(); err != nil {
		ln.Close()
		return err
	}
	defer s.cleanupSandbox()

	s.state.Store(int32(StateListening))
	s.audit(ctx, domain.NewEvent(domain.EventDaemonStart, "Privileged daemon started").
		Reason(fmt.Sprintf("endpoint=%s tier=%s", s.cfg.Endpoint, s.cfg.Policy.TrustTier())).
		Build())

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.debug("accept timeout", map[string]interface{}{"error": err.Error()})
				time.Sleep(50 * time.Millisecond)
				continue
			}
			acceptErr = fmt.Errorf("accept: %w", err)
			break
		}
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
	close(stop)

	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	s.audit(context.WithoutCancel(ctx), domain.NewEvent(domain.EventDaemonStop, "Privileged daemon stopped").Build())
	return acceptErr
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Error("connection handler panicked", fmt.Errorf("%v", r), nil)
			}
			writeResponse(conn, errorResponse(domain.RiskMedium, "internal error"))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(domain.RequestReadTimeout))
	line, err := readLine(conn)
	if err != nil {
		s.debug("rejected request", map[string]interface{}{"error": err.Error()})
		writeResponse(conn, errorResponse(domain.RiskMedium, err.Error()))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	req, err := decodeRequest(line)
	if err != nil {
		s.debug("rejected request", map[string]interface{}{"error": err.Error()})
		writeResponse(conn, errorResponse(domain.RiskMedium, err.Error()))
		return
	}

	resp := s.process(context.WithoutCancel(ctx), req, peerUser(conn))
	writeResponse(conn, resp)
}

// process is the request pipeline: re-check, execute, log. The caller's
// opinion of the risk is never consulted.
func (s *Server) process(ctx context.Context, wire Request, user string) Response {
	req, err := wire.ExecutionRequest(s.cfg.MaxExecution)
	if err != nil {
		return errorResponse(domain.RiskMedium, err.Error())
	}

	decision := s.cfg.Policy.CheckIn(req.Command, req.WorkingDir)
	if !decision.Allowed {
		s.audit(ctx, domain.NewEvent(domain.DenialEvent(decision), "Command denied by daemon").
			User(user).
			Command(req.Command).
			Decision(decision).
			Build())
		return errorResponse(decision.Risk, "Access denied: "+decision.Reason)
	}

	switch {
	case decision.Risk == domain.RiskCritical:
		s.audit(ctx, domain.NewEvent(domain.EventElevatedAccessUsed, "Critical command allowed").
			User(user).Command(req.Command).Decision(decision).Build())
	case decision.Risk == domain.RiskHigh && decision.AutoApproved:
		s.audit(ctx, domain.NewEvent(domain.EventHighRiskApproved, "High-risk command auto-approved").
			User(user).Command(req.Command).Decision(decision).Build())
	}

	if req.WorkingDir == "" {
		req.WorkingDir = s.sandbox
	}
	if req.Timeout <= 0 || req.Timeout > s.cfg.MaxExecution {
		req.Timeout = s.cfg.MaxExecution
	}

	result, err := s.cfg.Executor.Execute(ctx, req)
	output := result.Combined()
	switch {
	case errors.Is(err, domain.ErrTimeout):
		s.audit(ctx, domain.NewEvent(domain.EventTimeout, "Command timed out").
			User(user).Command(req.Command).Risk(decision.Risk).Allowed(true).
			Reason(fmt.Sprintf("exceeded %s", req.Timeout)).Build())
		resp := errorResponse(decision.Risk, "Timeout")
		resp.Output = output
		return resp
	case err != nil:
		s.audit(ctx, domain.NewEvent(domain.EventExecutionFailed, "Command could not be started").
			User(user).Command(req.Command).Risk(decision.Risk).Allowed(true).Reason(err.Error()).Build())
		return errorResponse(decision.Risk, err.Error())
	case result.ExitCode != 0:
		msg := fmt.Sprintf("exit status %d", result.ExitCode)
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			msg += ": " + stderr
		}
		s.audit(ctx, domain.NewEvent(domain.EventExecutionFailed, "Command exited non-zero").
			User(user).Command(req.Command).Risk(decision.Risk).Allowed(true).Reason(msg).Build())
		resp := errorResponse(decision.Risk, msg)
		resp.Output = output
		return resp
	}

	s.audit(ctx, domain.NewEvent(domain.EventCommandExecuted, "Command executed").
		User(user).Command(req.Command).Risk(decision.Risk).Allowed(true).Build())
	return Response{Success: true, Output: output, RiskLevel: decision.Risk.String()}
}

func (s *Server) prepareSandbox() error {
	if s.cfg.SandboxDir != "" {
		if err := os.MkdirAll(s.cfg.SandboxDir, domain.SecureDirPermissions); err != nil {
			return fmt.Errorf("create sandbox: %w", err)
		}
		s.sandbox = s.cfg.SandboxDir
		return nil
	}
	dir, err := os.MkdirTemp("", "ganesha-sandbox-")
	if err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}
	if err := os.Chmod(dir, domain.SecureDirPermissions); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("secure sandbox: %w", err)
	}
	s.sandbox = dir
	s.owned = true
	return nil
}

func (s *Server) cleanupSandbox() {
	if s.owned {
		os.RemoveAll(s.sandbox)
	}
}

func (s *Server) audit(ctx context.Context, event domain.Event) {
	if err := s.cfg.Audit.Log(ctx, event); err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.Error("audit write failed", err, map[string]interface{}{"event": event.ID().String()})
	}
}

func (s *Server) debug(msg string, fields map[string]interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, fields)
	}
}

// readLine reads one request line of at most MaxRequestBytes.
func readLine(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(io.LimitReader(r, domain.MaxRequestBytes+1))
	line, err := br.ReadBytes('\n')
	if len(line) > domain.MaxRequestBytes {
		return nil, errors.New("request too large")
	}
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, fmt.Errorf("read request: %w", err)
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, errors.New("empty request")
	}
	return line, nil
}

func writeResponse(conn net.Conn, resp Response) {
	_ = conn.SetWriteDeadline(time.Now().Add(domain.ResponseWriteTimeout))
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = conn.Write(append(b, '\n'))
}
