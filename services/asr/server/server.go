package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/consts"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/usecase"
	pb "github.com/Danwoltrs/wolthers-travel-app-sub001/specs/asr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	usecase usecase.Usecase
}

func NewServerOptions(usecase usecase.Usecase) *Server {
	return &Server{
		usecase: usecase,
	}
}

func (s *Server) NewServer() (*grpc.Server, error) {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(consts.MaxMessageSize),
		grpc.ChainUnaryInterceptor(logging),
	)
	pb.RegisterAsrServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, nil
}

func logging(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Warn(ctx, "grpc call failed",
			slog.String("method", info.FullMethod),
			slog.String("error", err.Error()))
	} else {
		logger.Debug(ctx, "grpc call", slog.String("method", info.FullMethod))
	}
	return resp, err
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, usecase.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) HealthCheck(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(true), nil
}

func (s *Server) TranscribeAudio(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	result, err := s.usecase.TranscribeAudio(ctx, &entity.TranscribeAudioRequest{
		AudioData:  req.GetValue(),
		ActivityID: pb.MetadataValue(ctx, pb.MetadataActivityID),
		UserID:     pb.MetadataValue(ctx, pb.MetadataUserID),
		MIMEType:   pb.MetadataValue(ctx, pb.MetadataMIMEType),
		FileName:   pb.MetadataValue(ctx, pb.MetadataFileName),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return pb.ToStruct(transcriptionToPB(result.Transcription))
}

func (s *Server) ListTranscriptions(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	list, err := s.usecase.ListTranscriptions(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	out := pb.TranscriptionList{Transcriptions: make([]pb.Transcription, 0, len(list))}
	for _, t := range list {
		out.Transcriptions = append(out.Transcriptions, transcriptionToPB(t))
	}
	return pb.ToStruct(out)
}

func (s *Server) SummarizeTranscript(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pb.SummarizeRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sreq := &entity.SummarizeRequest{Transcript: in.Transcript}
	if in.Context != nil {
		sreq.Context = entity.SummaryContext{
			ActivityTitle: in.Context.ActivityTitle,
			MeetingDate:   in.Context.MeetingDate,
			Companies:     in.Context.Companies,
		}
	}

	result, err := s.usecase.SummarizeTranscript(ctx, sreq)
	if err != nil {
		return nil, toStatus(err)
	}

	return pb.ToStruct(pb.SummarizeResult{
		Summary:       result.Summary,
		Fallback:      result.Fallback,
		WordCount:     result.WordCount,
		SummaryLength: result.SummaryLength,
	})
}

func transcriptionToPB(t *entity.Transcription) pb.Transcription {
	return pb.Transcription{
		ID:         t.ID,
		ActivityID: t.ActivityID,
		UserID:     t.UserID,
		Text:       t.Text,
		CreatedAt:  t.CreatedAt,
	}
}
