// Package control implements the CRS well-known control socket: it accepts
// one connection per client, decodes CREATE/DELETE/JOIN/LIST frames, and
// dispatches them against a room registry.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/barnden/roomline/internal/config"
	"github.com/barnden/roomline/internal/corrid"
	"github.com/barnden/roomline/internal/crs/registry"
	"github.com/barnden/roomline/internal/crs/validate"
	"github.com/barnden/roomline/internal/crs/wire"
	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/metrics"
	"github.com/barnden/roomline/internal/ratelimit"
)

// Server is the CRS control-plane listener: it owns the registry and
// serves CREATE/DELETE/JOIN/LIST requests until its context is canceled.
type Server struct {
	Registry *registry.Registry

	limiter *ratelimit.Limiter
}

// New returns a control Server backed by a fresh room registry, rate
// limiting control connections per remote IP.
func New() (*Server, error) {
	lim, err := ratelimit.New("crs_control", config.ControlRateLimitFormatted())
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	return &Server{Registry: registry.New(), limiter: lim}, nil
}

// Serve accepts connections on l until ctx is canceled or Accept fails.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn serves exactly one command per connection: the CRS client
// opens a fresh control connection per CREATE/DELETE/JOIN/LIST, and after
// a JOIN reply it closes this connection and dials the room's own port for
// chat mode, so the control handler's job ends as soon as it has replied.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	ctx = logging.WithCorrelationID(ctx, corrid.New())

	if !s.limiter.Allow(ctx, remoteIP(conn)) {
		metrics.ControlCommandsTotal.WithLabelValues("RATE_LIMITED", wire.StatusFailureUnknown.String()).Inc()
		_ = wire.WriteResponse(conn, wire.StatusFailureUnknown, nil)
		conn.Close()
		return
	}

	r := bufio.NewReader(conn)

	tag, err := wire.ReadTag(r)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logging.Warn(ctx, "control: failed to read command tag", zap.Error(err))
		}
		conn.Close()
		return
	}

	switch tag {
	case wire.Create:
		s.handleCreate(ctx, conn, r)
		conn.Close()
	case wire.Delete:
		s.handleDelete(ctx, conn, r)
		conn.Close()
	case wire.List:
		s.handleList(ctx, conn)
		conn.Close()
	case wire.Join:
		s.handleJoin(ctx, conn, r)
		// On success the client now talks chat-mode directly to the room
		// listener; this connection's only purpose was the handshake.
		conn.Close()
	default:
		metrics.ControlCommandsTotal.WithLabelValues("INVALID", wire.StatusFailureInvalid.String()).Inc()
		_ = wire.WriteResponse(conn, wire.StatusFailureInvalid, nil)
		conn.Close()
	}
}

func (s *Server) handleCreate(ctx context.Context, conn net.Conn, r *bufio.Reader) {
	name, err := wire.ReadNullTerminated(r)
	if err != nil {
		logging.Warn(ctx, "control: malformed CREATE", zap.Error(err))
		return
	}
	ctx = logging.WithRoom(ctx, name)

	if !validate.RoomName(name) {
		s.respond(ctx, conn, "CREATE", wire.StatusFailureInvalidUsername, nil)
		return
	}

	_, err = s.Registry.Create(name)
	switch {
	case err == nil:
		logging.Info(ctx, "room created")
		s.respond(ctx, conn, "CREATE", wire.StatusSuccess, nil)
	case errors.Is(err, registry.ErrAlreadyExists):
		s.respond(ctx, conn, "CREATE", wire.StatusFailureAlreadyExists, nil)
	default:
		logging.Error(ctx, "control: CREATE failed", zap.Error(err))
		s.respond(ctx, conn, "CREATE", wire.StatusFailureUnknown, nil)
	}
}

func (s *Server) handleDelete(ctx context.Context, conn net.Conn, r *bufio.Reader) {
	name, err := wire.ReadNullTerminated(r)
	if err != nil {
		logging.Warn(ctx, "control: malformed DELETE", zap.Error(err))
		return
	}
	ctx = logging.WithRoom(ctx, name)

	err = s.Registry.Delete(name)
	switch {
	case err == nil:
		logging.Info(ctx, "room deleted")
		s.respond(ctx, conn, "DELETE", wire.StatusSuccess, nil)
	case errors.Is(err, registry.ErrNotExists):
		s.respond(ctx, conn, "DELETE", wire.StatusFailureNotExists, nil)
	default:
		logging.Error(ctx, "control: DELETE failed", zap.Error(err))
		s.respond(ctx, conn, "DELETE", wire.StatusFailureUnknown, nil)
	}
}

func (s *Server) handleJoin(ctx context.Context, conn net.Conn, r *bufio.Reader) {
	name, err := wire.ReadNullTerminated(r)
	if err != nil {
		logging.Warn(ctx, "control: malformed JOIN", zap.Error(err))
		return
	}
	ctx = logging.WithRoom(ctx, name)

	port, members, err := s.Registry.Join(name)
	switch {
	case err == nil:
		logging.Info(ctx, "join granted", zap.Int("port", port))
		s.respond(ctx, conn, "JOIN", wire.StatusSuccess, wire.EncodeJoinTail(port, members))
	case errors.Is(err, registry.ErrNotExists):
		s.respond(ctx, conn, "JOIN", wire.StatusFailureNotExists, nil)
	default:
		logging.Error(ctx, "control: JOIN failed", zap.Error(err))
		s.respond(ctx, conn, "JOIN", wire.StatusFailureUnknown, nil)
	}
}

func (s *Server) handleList(ctx context.Context, conn net.Conn) {
	rooms := s.Registry.List()
	logging.Info(ctx, "list requested", zap.Int("count", len(rooms)))
	s.respond(ctx, conn, "LIST", wire.StatusSuccess, wire.EncodeListTail(rooms))
}

// remoteIP returns conn's remote address with any port stripped, falling
// back to the raw address string if it isn't a host:port pair.
func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (s *Server) respond(ctx context.Context, conn net.Conn, command string, status wire.Status, tail []byte) {
	metrics.ControlCommandsTotal.WithLabelValues(strings.ToUpper(command), status.String()).Inc()
	if err := wire.WriteResponse(conn, status, tail); err != nil {
		logging.Warn(ctx, "control: failed to write response", zap.String("command", command), zap.Error(err))
	}
}
