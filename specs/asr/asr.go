// Package asr is the gRPC contract between the web gateway and the speech
// service. Messages are protobuf well-known types: raw audio travels as
// BytesValue with its attributes in request metadata, structured payloads
// as Struct values converted from the Go types below.
package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "asr.AsrService"

const (
	MetadataActivityID = "x-activity-id"
	MetadataUserID     = "x-user-id"
	MetadataMIMEType   = "x-mime-type"
	MetadataFileName   = "x-file-name"
)

const (
	healthCheckMethod        = "/" + ServiceName + "/HealthCheck"
	transcribeAudioMethod    = "/" + ServiceName + "/TranscribeAudio"
	listTranscriptionsMethod = "/" + ServiceName + "/ListTranscriptions"
	summarizeMethod          = "/" + ServiceName + "/SummarizeTranscript"
)

type Transcription struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

type TranscriptionList struct {
	Transcriptions []Transcription `json:"transcriptions"`
}

type SummaryContext struct {
	ActivityTitle string   `json:"activityTitle,omitempty"`
	MeetingDate   string   `json:"meetingDate,omitempty"`
	Companies     []string `json:"companies,omitempty"`
}

type SummarizeRequest struct {
	Transcript string          `json:"transcript"`
	Context    *SummaryContext `json:"context,omitempty"`
}

type SummarizeResult struct {
	Summary       string `json:"summary"`
	Fallback      bool   `json:"fallback,omitempty"`
	WordCount     int    `json:"wordCount,omitempty"`
	SummaryLength int    `json:"summaryLength,omitempty"`
}

// ToStruct converts a JSON-tagged value into a Struct message.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes a Struct message into a JSON-tagged value.
func FromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("failed to decode struct: %w", err)
	}
	return json.Unmarshal(raw, v)
}

// AudioMetadata attaches the attributes of an audio upload to ctx.
func AudioMetadata(ctx context.Context, activityID, userID, mimeType, fileName string) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		MetadataActivityID, activityID,
		MetadataUserID, userID,
		MetadataMIMEType, mimeType,
		MetadataFileName, fileName,
	)
}

// MetadataValue returns the first incoming metadata value for key.
func MetadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

type AsrServiceServer interface {
	HealthCheck(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	TranscribeAudio(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	ListTranscriptions(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SummarizeTranscript(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type AsrServiceClient interface {
	HealthCheck(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	TranscribeAudio(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListTranscriptions(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	SummarizeTranscript(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type asrServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAsrServiceClient(cc grpc.ClientConnInterface) AsrServiceClient {
	return &asrServiceClient{cc: cc}
}

func (c *asrServiceClient) HealthCheck(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, healthCheckMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *asrServiceClient) TranscribeAudio(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, transcribeAudioMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *asrServiceClient) ListTranscriptions(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listTranscriptionsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *asrServiceClient) SummarizeTranscript(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, summarizeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterAsrServiceServer(s grpc.ServiceRegistrar, srv AsrServiceServer) {
	s.RegisterService(&AsrService_ServiceDesc, srv)
}

func healthCheckHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AsrServiceServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: healthCheckMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AsrServiceServer).HealthCheck(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func transcribeAudioHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AsrServiceServer).TranscribeAudio(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transcribeAudioMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AsrServiceServer).TranscribeAudio(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listTranscriptionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AsrServiceServer).ListTranscriptions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listTranscriptionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AsrServiceServer).ListTranscriptions(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func summarizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AsrServiceServer).SummarizeTranscript(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: summarizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AsrServiceServer).SummarizeTranscript(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var AsrService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AsrServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
		{MethodName: "TranscribeAudio", Handler: transcribeAudioHandler},
		{MethodName: "ListTranscriptions", Handler: listTranscriptionsHandler},
		{MethodName: "SummarizeTranscript", Handler: summarizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "asr.proto",
}
