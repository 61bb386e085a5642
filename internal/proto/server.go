package proto

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
)

// MetadataToken is the metadata key carrying the session token.
const MetadataToken = "authorization"

type ctxKey string

const userKey ctxKey = "user"

type BoardServer struct {
	auth   *service.Auth
	board  *service.Board
	health *health.Server
	grpc   *grpc.Server
	logger *zap.SugaredLogger
}

func NewGRPCServer(lc fx.Lifecycle, cfg *config.Config, auth *service.Auth, board *service.Board, logger *zap.SugaredLogger) *BoardServer {
	instance := NewBoardServer(auth, board, logger)

	addr := cfg.GRPCAddr()
	if addr == "" {
		logger.Info("GRPC server disabled.")
		return instance
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrap(err, "listen grpc")
			}
			logger.Infow("Starting GRPC server.", "addr", lis.Addr().String())
			go func() {
				if err := instance.grpc.Serve(lis); err != nil {
					logger.Errorw("GRPC server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping GRPC server.")
			instance.Stop()
			return nil
		},
	})

	return instance
}

// NewBoardServer builds the grpc.Server with the board and health services
// registered. Serving is left to the caller.
func NewBoardServer(auth *service.Auth, board *service.Board, logger *zap.SugaredLogger) *BoardServer {
	instance := &BoardServer{
		auth:   auth,
		board:  board,
		health: health.NewServer(),
		logger: logger,
	}

	instance.grpc = grpc.NewServer(
		grpc.UnaryInterceptor(instance.authInterceptor),
	)
	RegisterBoardServer(instance.grpc, instance)
	healthpb.RegisterHealthServer(instance.grpc, instance.health)
	instance.health.SetServingStatus(BoardServiceName, healthpb.HealthCheckResponse_SERVING)

	return instance
}

func (s *BoardServer) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

func (s *BoardServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *BoardServer) authInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+BoardServiceName+"/") {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(MetadataToken)
		if len(values) > 0 {
			token = strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
		}
	}
	if len(token) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		s.logger.Errorw("grpc authenticate failed", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	if user == nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = context.WithValue(ctx, userKey, user)
	return handler(ctx, req)
}

func (s *BoardServer) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	user, ok := ctx.Value(userKey).(*db.User)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing user")
	}

	topics, err := s.board.ListTopics(ctx, user)
	if err != nil {
		return nil, s.toStatus(err)
	}
	notes, err := s.board.ListNotes(ctx, user)
	if err != nil {
		return nil, s.toStatus(err)
	}

	topicList := make([]interface{}, len(topics))
	for i, t := range topics {
		members := make([]interface{}, len(t.Members))
		for j, m := range t.Members {
			members[j] = m
		}
		topicList[i] = map[string]interface{}{
			"id":        t.ID,
			"name":      t.Name,
			"ownerId":   t.OwnerID,
			"shareCode": t.ShareCode,
			"members":   members,
		}
	}

	noteList := make([]interface{}, len(notes))
	for i, n := range notes {
		var topicID interface{}
		if n.TopicID != nil {
			topicID = *n.TopicID
		}
		noteList[i] = map[string]interface{}{
			"id":        n.ID,
			"title":     n.Title,
			"content":   n.Content,
			"color":     n.Color,
			"x":         n.X,
			"y":         n.Y,
			"width":     n.Width,
			"height":    n.Height,
			"ownerId":   n.OwnerID,
			"topicId":   topicID,
			"createdAt": n.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"topics": topicList,
		"notes":  noteList,
	})
	if err != nil {
		return nil, s.toStatus(errors.Wrap(err, "build snapshot"))
	}
	return out, nil
}

func (s *BoardServer) toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	}
	s.logger.Errorw("grpc request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
