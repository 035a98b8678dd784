// Package grpc is a thin gRPC adapter over pkg/namespace. It speaks
// google.golang.org/protobuf/types/known/structpb.Struct request and
// response envelopes rather than hand-generated message types, since
// no .proto compiler is available in this build; structpb.Struct is
// itself a real, wire-compatible protobuf message, so this is an
// honest (if schema-loose) gRPC service rather than a stand-in for one.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// VectorDBServer is the set of RPCs this adapter exposes. Every method
// takes and returns a structpb.Struct envelope; see handlers.go for
// the field schema each method expects and produces.
type VectorDBServer interface {
	CreateNamespace(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnablePQ(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func _VectorDB_CreateNamespace_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).CreateNamespace(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/CreateNamespace"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).CreateNamespace(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_Insert_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).Insert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/Insert"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).Insert(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_Search_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/Search"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).Search(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_Delete_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/Delete"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).Delete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_Stats_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/Stats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).Stats(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_HealthCheck_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).HealthCheck(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _VectorDB_EnablePQ_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorDBServer).EnablePQ(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vamana.VectorDB/EnablePQ"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorDBServer).EnablePQ(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// VectorDB_ServiceDesc is the hand-authored grpc.ServiceDesc standing
// in for what protoc-gen-go-grpc would normally emit from a .proto
// file. Method names and the service name follow the same convention
// codegen would produce, so a client generated later from an actual
// .proto definition would be wire-compatible.
var VectorDB_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "vamana.VectorDB",
	HandlerType: (*VectorDBServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateNamespace", Handler: _VectorDB_CreateNamespace_Handler},
		{MethodName: "Insert", Handler: _VectorDB_Insert_Handler},
		{MethodName: "Search", Handler: _VectorDB_Search_Handler},
		{MethodName: "Delete", Handler: _VectorDB_Delete_Handler},
		{MethodName: "Stats", Handler: _VectorDB_Stats_Handler},
		{MethodName: "HealthCheck", Handler: _VectorDB_HealthCheck_Handler},
		{MethodName: "EnablePQ", Handler: _VectorDB_EnablePQ_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vamana.proto",
}

// RegisterVectorDBServer registers srv's implementation with s.
func RegisterVectorDBServer(s *grpc.Server, srv VectorDBServer) {
	s.RegisterService(&VectorDB_ServiceDesc, srv)
}
