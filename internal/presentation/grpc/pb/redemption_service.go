// Package pb gRPCサービス定義
// メッセージはprotobufのwell-known typesで表現し、コード生成に依存しない
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	RedemptionServiceName = "coupon.redemption.v1.RedemptionService"
	AdminServiceName      = "coupon.redemption.v1.AdminService"

	RedemptionService_IssueToken_FullMethodName = "/" + RedemptionServiceName + "/IssueToken"
	RedemptionService_Validate_FullMethodName   = "/" + RedemptionServiceName + "/Validate"
	RedemptionService_Process_FullMethodName    = "/" + RedemptionServiceName + "/Process"
	RedemptionService_ListAudit_FullMethodName  = "/" + RedemptionServiceName + "/ListAudit"

	AdminService_SweepExpired_FullMethodName = "/" + AdminServiceName + "/SweepExpired"
	AdminService_ListKeys_FullMethodName     = "/" + AdminServiceName + "/ListKeys"
)

// RedemptionServiceServer 引き換えサービス
//
//	IssueToken: クーポンID → {token, expires_at, key_version}
//	Validate / Process: 引き換えトークン → {outcome, category, message, record_id, coupon}
//	ListAudit: {coupon_id, limit} → {coupon_id, records}
type RedemptionServiceServer interface {
	IssueToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Validate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Process(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListAudit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRedemptionServiceServer 未実装メソッドのデフォルト実装
type UnimplementedRedemptionServiceServer struct{}

func (UnimplementedRedemptionServiceServer) IssueToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method IssueToken not implemented")
}

func (UnimplementedRedemptionServiceServer) Validate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Validate not implemented")
}

func (UnimplementedRedemptionServiceServer) Process(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Process not implemented")
}

func (UnimplementedRedemptionServiceServer) ListAudit(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAudit not implemented")
}

// RegisterRedemptionServiceServer サービスを登録
func RegisterRedemptionServiceServer(s grpc.ServiceRegistrar, srv RedemptionServiceServer) {
	s.RegisterService(&RedemptionService_ServiceDesc, srv)
}

func _RedemptionService_IssueToken_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RedemptionServiceServer).IssueToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RedemptionService_IssueToken_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RedemptionServiceServer).IssueToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _RedemptionService_Validate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RedemptionServiceServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RedemptionService_Validate_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RedemptionServiceServer).Validate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _RedemptionService_Process_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RedemptionServiceServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RedemptionService_Process_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RedemptionServiceServer).Process(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _RedemptionService_ListAudit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RedemptionServiceServer).ListAudit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RedemptionService_ListAudit_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RedemptionServiceServer).ListAudit(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RedemptionService_ServiceDesc 引き換えサービスの定義
var RedemptionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RedemptionServiceName,
	HandlerType: (*RedemptionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IssueToken", Handler: _RedemptionService_IssueToken_Handler},
		{MethodName: "Validate", Handler: _RedemptionService_Validate_Handler},
		{MethodName: "Process", Handler: _RedemptionService_Process_Handler},
		{MethodName: "ListAudit", Handler: _RedemptionService_ListAudit_Handler},
	},
	Streams: []grpc.StreamDesc{},
}

// RedemptionServiceClient 引き換えサービスのクライアント
type RedemptionServiceClient interface {
	IssueToken(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Validate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Process(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAudit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type redemptionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRedemptionServiceClient 新しいクライアントを作成
func NewRedemptionServiceClient(cc grpc.ClientConnInterface) RedemptionServiceClient {
	return &redemptionServiceClient{cc}
}

func (c *redemptionServiceClient) IssueToken(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RedemptionService_IssueToken_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *redemptionServiceClient) Validate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RedemptionService_Validate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *redemptionServiceClient) Process(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RedemptionService_Process_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *redemptionServiceClient) ListAudit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RedemptionService_ListAudit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminServiceServer 運用者向けサービス
type AdminServiceServer interface {
	SweepExpired(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListKeys(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterAdminServiceServer サービスを登録
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminService_ServiceDesc, srv)
}

func _AdminService_SweepExpired_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).SweepExpired(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AdminService_SweepExpired_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).SweepExpired(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _AdminService_ListKeys_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).ListKeys(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AdminService_ListKeys_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).ListKeys(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// AdminService_ServiceDesc 運用者向けサービスの定義
var AdminService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SweepExpired", Handler: _AdminService_SweepExpired_Handler},
		{MethodName: "ListKeys", Handler: _AdminService_ListKeys_Handler},
	},
	Streams: []grpc.StreamDesc{},
}

// AdminServiceClient 運用者向けサービスのクライアント
type AdminServiceClient interface {
	SweepExpired(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListKeys(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type adminServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAdminServiceClient 新しいクライアントを作成
func NewAdminServiceClient(cc grpc.ClientConnInterface) AdminServiceClient {
	return &adminServiceClient{cc}
}

func (c *adminServiceClient) SweepExpired(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AdminService_SweepExpired_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminServiceClient) ListKeys(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AdminService_ListKeys_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
