// Package service implements the SNS RPC handlers: Login, List, Follow,
// UnFollow, and the Timeline bidirectional stream's handshake/replay/live
// fan-out state machine.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/barnden/roomline/internal/config"
	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/metrics"
	"github.com/barnden/roomline/internal/ratelimit"
	"github.com/barnden/roomline/internal/sns/registry"
	"github.com/barnden/roomline/internal/sns/rpcwire"
	"github.com/barnden/roomline/internal/sns/user"
)

// handshakeSentinel is the literal text a Timeline stream's first message
// must carry, per spec §4: 0xFEE1DEAD.
const handshakeSentinel = "0xFEE1DEAD"

// nowFunc is overridable in tests; in production it's time.Now().UnixNano.
var nowFunc = func() int64 { return time.Now().UnixNano() }

// Service implements rpcwire.SNSServer against a user registry.
type Service struct {
	reg *registry.Registry

	loginLimiter *ratelimit.Limiter
}

// New returns a Service backed by reg, rate limiting Login attempts per
// username.
func New(reg *registry.Registry) (*Service, error) {
	lim, err := ratelimit.New("sns_login", config.LoginRateLimitFormatted())
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return &Service{reg: reg, loginLimiter: lim}, nil
}

var _ rpcwire.SNSServer = (*Service)(nil)

// Login creates the account named by req.Username. A second Login for a
// username that is already registered is rejected with "duplicate" — it
// does not reset or reuse the existing session (spec §4.5, §8 property 9).
func (s *Service) Login(ctx context.Context, req *rpcwire.Request) (*rpcwire.Reply, error) {
	ctx = logging.WithUsername(ctx, req.Username)
	if req.Username == "" {
		metrics.SNSRPCTotal.WithLabelValues("Login", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "username required")
	}
	if !s.loginLimiter.Allow(ctx, req.Username) {
		metrics.SNSRPCTotal.WithLabelValues("Login", "rate_limited").Inc()
		return nil, status.Error(codes.ResourceExhausted, "too many login attempts")
	}

	_, created, err := s.reg.GetOrCreate(req.Username)
	if err != nil {
		metrics.SNSRPCTotal.WithLabelValues("Login", "error").Inc()
		logging.Error(ctx, "login: persist failed", zap.Error(err))
		return nil, status.Errorf(codes.Internal, "login: %v", err)
	}
	if !created {
		metrics.SNSRPCTotal.WithLabelValues("Login", "duplicate").Inc()
		logging.Info(ctx, "login rejected: already logged in")
		return nil, status.Error(codes.AlreadyExists, "duplicate")
	}

	metrics.SNSUsersActive.Inc()
	logging.Info(ctx, "user registered")
	metrics.SNSRPCTotal.WithLabelValues("Login", "ok").Inc()
	return &rpcwire.Reply{Msg: "OK"}, nil
}

// List returns every registered username plus, per spec §9, the set that
// ends up surfaced under FollowingUsers is actually the caller's
// followers, not who they follow — a quirk carried over unchanged from the
// original service's List implementation.
func (s *Service) List(ctx context.Context, req *rpcwire.Request) (*rpcwire.Reply, error) {
	u, ok := s.reg.Get(req.Username)
	if !ok {
		metrics.SNSRPCTotal.WithLabelValues("List", "not_found").Inc()
		return nil, status.Errorf(codes.NotFound, "unknown user %q", req.Username)
	}

	metrics.SNSRPCTotal.WithLabelValues("List", "ok").Inc()
	return &rpcwire.Reply{
		AllUsers:       s.reg.Names(),
		FollowingUsers: u.Followers(),
	}, nil
}

// Follow makes req.Username follow req.Arguments[0].
func (s *Service) Follow(ctx context.Context, req *rpcwire.Request) (*rpcwire.Reply, error) {
	ctx = logging.WithUsername(ctx, req.Username)
	if len(req.Arguments) != 1 {
		metrics.SNSRPCTotal.WithLabelValues("Follow", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "follow requires exactly one target username")
	}
	target := req.Arguments[0]

	if err := s.reg.Follow(req.Username, target); err != nil {
		metrics.SNSRPCTotal.WithLabelValues("Follow", "not_found").Inc()
		return nil, status.Errorf(codes.NotFound, "follow: %v", err)
	}
	logging.Info(ctx, "follow", zap.String("target", target))
	metrics.SNSRPCTotal.WithLabelValues("Follow", "ok").Inc()
	return &rpcwire.Reply{Msg: "OK"}, nil
}

// UnFollow makes req.Username stop following req.Arguments[0].
func (s *Service) UnFollow(ctx context.Context, req *rpcwire.Request) (*rpcwire.Reply, error) {
	ctx = logging.WithUsername(ctx, req.Username)
	if len(req.Arguments) != 1 {
		metrics.SNSRPCTotal.WithLabelValues("UnFollow", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "unfollow requires exactly one target username")
	}
	target := req.Arguments[0]

	if err := s.reg.UnFollow(req.Username, target); err != nil {
		metrics.SNSRPCTotal.WithLabelValues("UnFollow", "not_found").Inc()
		return nil, status.Errorf(codes.NotFound, "unfollow: %v", err)
	}
	logging.Info(ctx, "unfollow", zap.String("target", target))
	metrics.SNSRPCTotal.WithLabelValues("UnFollow", "ok").Inc()
	return &rpcwire.Reply{Msg: "OK"}, nil
}

// Timeline drives the Pending -> Attached -> Live handshake for one
// client's bidirectional stream:
//
//  1. Pending: the first inbound message's Msg must equal the handshake
//     sentinel and Username must name a registered account. Anything else
//     aborts the stream.
//  2. Attached: the user's recentPosts are replayed over the stream,
//     most-recent-first, and the stream handle is installed on the user so
//     future fan-out reaches it.
//  3. Live: every subsequent inbound message is a new post from this user,
//     fanned out to every one of their followers' recentPosts, and to any
//     of those followers' live streams (including the author's own,
//     because users follow themselves).
func (s *Service) Timeline(stream grpc.BidiStreamingServer[rpcwire.PostMsg, rpcwire.PostMsg]) error {
	ctx := stream.Context()

	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if !isHandshake(first) {
		metrics.SNSRPCTotal.WithLabelValues("Timeline", "bad_handshake").Inc()
		return status.Error(codes.FailedPrecondition, "timeline: first message must be the handshake")
	}

	username := first.Username
	ctx = logging.WithUsername(ctx, username)
	u, ok := s.reg.Get(username)
	if !ok {
		metrics.SNSRPCTotal.WithLabelValues("Timeline", "not_found").Inc()
		return status.Errorf(codes.NotFound, "timeline: unknown user %q", username)
	}

	st := user.NewStream(stream.Send)
	st.Advance(user.StreamAttached)
	u.AttachStream(st)
	metrics.SNSTimelineStreamsActive.Inc()
	defer func() {
		u.DetachStream(st)
		metrics.SNSTimelineStreamsActive.Dec()
	}()

	logging.Info(ctx, "timeline attached")

	for _, p := range u.RecentPosts() {
		if err := st.Send(&rpcwire.PostMsg{Username: p.Author, Msg: p.Text, Timestamp: p.Timestamp}); err != nil {
			return err
		}
		metrics.SNSPostsTotal.WithLabelValues("replay").Inc()
	}

	st.Advance(user.StreamLive)
	logging.Info(ctx, "timeline live")

	for {
		msg, err := stream.Recv()
		if err != nil {
			return mapRecvErr(err)
		}
		if msg.Username != username {
			metrics.SNSRPCTotal.WithLabelValues("Timeline", "username_mismatch").Inc()
			return status.Errorf(codes.InvalidArgument, "timeline: post username %q does not match logged-in user %q", msg.Username, username)
		}
		post := user.Post{Author: username, Text: msg.Msg, Timestamp: msg.Timestamp}
		if post.Timestamp == 0 {
			post.Timestamp = nowFunc()
		}
		s.fanOut(ctx, username, post)
	}
}

// fanOut delivers post to every follower of author: their recentPosts
// history always gets it, and if they currently have a live Timeline
// stream attached it is sent immediately too. Followers are visited in
// sorted order for deterministic fan-out; each follower's own data lock is
// only held for the duration of the single PushPost/Stream call, so the
// stream send below never runs while a user lock is held.
func (s *Service) fanOut(ctx context.Context, author string, post user.Post) {
	a, ok := s.reg.Get(author)
	if !ok {
		return
	}
	followers := a.Followers()
	sort.Strings(followers)

	for _, name := range followers {
		follower, ok := s.reg.Get(name)
		if !ok {
			continue
		}
		follower.PushPost(post)
		metrics.SNSPostsTotal.WithLabelValues("history").Inc()

		st := follower.Stream()
		if st == nil || st.State() != user.StreamLive {
			continue
		}
		if err := st.Send(&rpcwire.PostMsg{Username: post.Author, Msg: post.Text, Timestamp: post.Timestamp}); err != nil {
			logging.Warn(ctx, "fan-out send failed", zap.String("to", name), zap.Error(err))
			continue
		}
		metrics.SNSPostsTotal.WithLabelValues("live").Inc()
	}
}

// isHandshake reports whether msg is a valid Timeline handshake: its text
// carries the 0xFEE1DEAD sentinel and names a non-empty username.
func isHandshake(msg *rpcwire.PostMsg) bool {
	if msg.Username == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(msg.Msg), handshakeSentinel)
}

func mapRecvErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("timeline: %w", err)
}
