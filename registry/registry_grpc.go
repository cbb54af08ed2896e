// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified name of the Registry service.
const ServiceName = "meanalysis.Registry"

// RegistryServer is the server API for Registry service.
// All implementations must embed UnimplementedRegistryServer
// for forward compatibility.
type RegistryServer interface {
	// Register creates a sample from the given configuration record and
	// returns its descriptor.
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Describe returns the descriptor of the sample with the given nickname.
	Describe(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// SetTotalEvents sets the total number of events of a sample.
	SetTotalEvents(context.Context, *structpb.Struct) (*empty.Empty, error)
	// Populate counts the events of a sample from its input files.
	Populate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Schedule splits the registered samples into jobs and assigns them to
	// the workers.
	Schedule(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	// Feedback reports the performance indicators of a worker.
	Feedback(context.Context, *structpb.Struct) (*empty.Empty, error)
	// Finalize releases every sample and terminates the server.
	Finalize(context.Context, *empty.Empty) (*empty.Empty, error)
	mustEmbedUnimplementedRegistryServer()
}

// UnimplementedRegistryServer must be embedded to have forward compatible implementations.
type UnimplementedRegistryServer struct {
}

func (UnimplementedRegistryServer) Register(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedRegistryServer) Describe(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Describe not implemented")
}
func (UnimplementedRegistryServer) SetTotalEvents(context.Context, *structpb.Struct) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetTotalEvents not implemented")
}
func (UnimplementedRegistryServer) Populate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Populate not implemented")
}
func (UnimplementedRegistryServer) Schedule(context.Context, *structpb.Struct) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Schedule not implemented")
}
func (UnimplementedRegistryServer) Feedback(context.Context, *structpb.Struct) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Feedback not implemented")
}
func (UnimplementedRegistryServer) Finalize(context.Context, *empty.Empty) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Finalize not implemented")
}
func (UnimplementedRegistryServer) mustEmbedUnimplementedRegistryServer() {}

// RegisterRegistryServer registers the given implementation with the gRPC server.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&Registry_ServiceDesc, srv)
}

// handler adapts a method of RegistryServer to a unary gRPC method handler.
func handler[T any, PT interface{ *T }, R any](method string, call func(RegistryServer, context.Context, PT) (R, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PT(new(T))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			out, err := call(srv.(RegistryServer), ctx, in)
			return out, err
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			out, err := call(srv.(RegistryServer), ctx, req.(PT))
			return out, err
		})
	}
}

// Registry_ServiceDesc is the grpc.ServiceDesc for Registry service.
// The messages are protobuf well-known types, so the service needs no
// generated code.
var Registry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: handler[structpb.Struct]("Register", RegistryServer.Register)},
		{MethodName: "Describe", Handler: handler[wrapperspb.StringValue]("Describe", RegistryServer.Describe)},
		{MethodName: "SetTotalEvents", Handler: handler[structpb.Struct]("SetTotalEvents", RegistryServer.SetTotalEvents)},
		{MethodName: "Populate", Handler: handler[wrapperspb.StringValue]("Populate", RegistryServer.Populate)},
		{MethodName: "Schedule", Handler: handler[structpb.Struct]("Schedule", RegistryServer.Schedule)},
		{MethodName: "Feedback", Handler: handler[structpb.Struct]("Feedback", RegistryServer.Feedback)},
		{MethodName: "Finalize", Handler: handler[empty.Empty]("Finalize", RegistryServer.Finalize)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry.proto",
}

// RegistryClient is the client API for Registry service.
type RegistryClient interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Describe(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetTotalEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error)
	Populate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Schedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Feedback(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error)
	Finalize(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*empty.Empty, error)
}

type registryClient struct {
	cc grpc.ClientConnInterface
}

// NewRegistryClient creates a new client over the given connection.
func NewRegistryClient(cc grpc.ClientConnInterface) RegistryClient {
	return &registryClient{cc}
}

// invoke calls the given method and decodes the response into out.
func invoke[R any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, out *R, opts ...grpc.CallOption) (*R, error) {
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "Register", in, new(structpb.Struct), opts...)
}

func (c *registryClient) Describe(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "Describe", in, new(structpb.Struct), opts...)
}

func (c *registryClient) SetTotalEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error) {
	return invoke(ctx, c.cc, "SetTotalEvents", in, new(empty.Empty), opts...)
}

func (c *registryClient) Populate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "Populate", in, new(structpb.Struct), opts...)
}

func (c *registryClient) Schedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c.cc, "Schedule", in, new(structpb.ListValue), opts...)
}

func (c *registryClient) Feedback(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error) {
	return invoke(ctx, c.cc, "Feedback", in, new(empty.Empty), opts...)
}

func (c *registryClient) Finalize(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*empty.Empty, error) {
	return invoke(ctx, c.cc, "Finalize", in, new(empty.Empty), opts...)
}
