package proto

import (
	"context"
	"encoding/json"
	"math"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/config"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/models"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/service"
)

const tokenMetadataKey = "x-token"

type userCtxKey struct{}

type LinksServerImpl struct {
	general *service.General
	links   *service.Links
	logger  *zap.SugaredLogger
}

func NewGRPCServer(lc fx.Lifecycle, cfg *config.Config, general *service.General, links *service.Links, logger *zap.SugaredLogger) *LinksServerImpl {
	instance := LinksServerImpl{
		general: general,
		links:   links,
		logger:  logger,
	}

	grpcServer := instance.NewServer()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", cfg.GRPCAddr())
			if err != nil {
				return errors.Wrap(err, "failed to listen")
			}
			go func() {
				logger.Infow("Starting GRPC server.", "addr", lis.Addr().String())
				if err := grpcServer.Serve(lis); err != nil {
					logger.Errorw("failed to serve", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping GRPC server.")
			grpcServer.GracefulStop()
			return nil
		},
	})

	return &instance
}

// NewServer builds a grpc.Server with the links service registered behind
// token authentication.
func (s *LinksServerImpl) NewServer() *grpc.Server {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(s.authInterceptor))
	RegisterLinksServer(grpcServer, s)
	return grpcServer
}

func (s *LinksServerImpl) List(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	page, err := pageOf(request)
	if err != nil {
		return nil, err
	}

	result, err := s.links.List(ctx, userFromContext(ctx), page)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(models.NewLinkListResp(result))
}

func (s *LinksServerImpl) Create(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	link, err := s.links.Create(ctx, userFromContext(ctx), fieldsOf(request))
	if err != nil {
		return nil, s.toStatus(err)
	}
	resp := models.NewLinkResp(link)
	return toStruct(models.LinkMutationResp{Message: models.MessageLinkCreated, Link: &resp})
}

func (s *LinksServerImpl) Edit(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	id, err := idOf(request)
	if err != nil {
		return nil, err
	}
	link, err := s.links.Edit(ctx, userFromContext(ctx), id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(models.NewLinkResp(link))
}

func (s *LinksServerImpl) Update(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	id, err := idOf(request)
	if err != nil {
		return nil, err
	}
	link, err := s.links.Update(ctx, userFromContext(ctx), id, fieldsOf(request))
	if err != nil {
		return nil, s.toStatus(err)
	}
	resp := models.NewLinkResp(link)
	return toStruct(models.LinkMutationResp{Message: models.MessageLinkUpdated, Link: &resp})
}

func (s *LinksServerImpl) Delete(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	id, err := idOf(request)
	if err != nil {
		return nil, err
	}
	if err := s.links.Delete(ctx, userFromContext(ctx), id); err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(models.LinkMutationResp{Message: models.MessageLinkDeleted})
}

func (s *LinksServerImpl) authInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	token := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(tokenMetadataKey); len(values) != 0 {
			token = values[0]
		}
	}

	user, err := s.general.UserByToken(ctx, token)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return handler(context.WithValue(ctx, userCtxKey{}, user), req)
}

func (s *LinksServerImpl) toStatus(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		st := status.New(codes.InvalidArgument, verr.Error())
		details, derr := toStruct(verr.Errors)
		if derr != nil {
			return st.Err()
		}
		if withDetails, derr := st.WithDetails(details); derr == nil {
			st = withDetails
		}
		return st.Err()
	case errors.Is(err, service.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}

	s.logger.Errorw("grpc call failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func userFromContext(ctx context.Context) *db.User {
	user, _ := ctx.Value(userCtxKey{}).(*db.User)
	return user
}

// fieldsOf reads link fields from the "fields" member of a request.
func fieldsOf(request *structpb.Struct) map[string]interface{} {
	fields := request.GetFields()["fields"].GetStructValue()
	if fields == nil {
		return map[string]interface{}{}
	}
	return fields.AsMap()
}

func idOf(request *structpb.Struct) (uint64, error) {
	v, ok := request.GetFields()["id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "id is required")
	}
	n := v.GetNumberValue()
	if n < 1 || n != math.Trunc(n) || n >= math.MaxInt64 {
		return 0, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	return uint64(n), nil
}

// pageOf reads the optional "page" member. Pages beyond the int range are
// clamped, since they are past the end anyway.
func pageOf(request *structpb.Struct) (int, error) {
	v, ok := request.GetFields()["page"]
	if !ok {
		return 1, nil
	}
	n := v.GetNumberValue()
	if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return 0, status.Error(codes.InvalidArgument, "page must be an integer")
	}
	switch {
	case n >= math.MaxInt64:
		return math.MaxInt64, nil
	case n < 1:
		return 1, nil
	}
	return int(n), nil
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
