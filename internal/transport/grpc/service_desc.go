package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "vetcare.scheduling.v1.SchedulingService"

// SchedulingServiceServer is implemented by SchedulingServer.
type SchedulingServiceServer interface {
	SuggestSlots(ctx context.Context, req *SuggestSlotsRequest) (*SuggestSlotsResponse, error)
	BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*AppointmentResponse, error)
	GetAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error)
	ConfirmAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error)
	CompleteAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error)
	MarkNoShow(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error)
	RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentResponse, error)
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServiceServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

// unaryHandler adapts one typed method to grpc's untyped handler signature.
func unaryHandler[Req any, Resp any](method string, call func(SchedulingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("SuggestSlots", SchedulingServiceServer.SuggestSlots),
		unaryHandler("BookAppointment", SchedulingServiceServer.BookAppointment),
		unaryHandler("GetAppointment", SchedulingServiceServer.GetAppointment),
		unaryHandler("ConfirmAppointment", SchedulingServiceServer.ConfirmAppointment),
		unaryHandler("CancelAppointment", SchedulingServiceServer.CancelAppointment),
		unaryHandler("CompleteAppointment", SchedulingServiceServer.CompleteAppointment),
		unaryHandler("MarkNoShow", SchedulingServiceServer.MarkNoShow),
		unaryHandler("RescheduleAppointment", SchedulingServiceServer.RescheduleAppointment),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vetcare/scheduling/v1",
}

// SchedulingClient calls the service with the json codec.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingClient) SuggestSlots(ctx context.Context, in *SuggestSlotsRequest, opts ...grpc.CallOption) (*SuggestSlotsResponse, error) {
	return invoke[SuggestSlotsResponse](ctx, c.cc, "SuggestSlots", in, opts)
}

func (c *SchedulingClient) BookAppointment(ctx context.Context, in *BookAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "BookAppointment", in, opts)
}

func (c *SchedulingClient) GetAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "GetAppointment", in, opts)
}

func (c *SchedulingClient) ConfirmAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "ConfirmAppointment", in, opts)
}

func (c *SchedulingClient) CancelAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "CancelAppointment", in, opts)
}

func (c *SchedulingClient) CompleteAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "CompleteAppointment", in, opts)
}

func (c *SchedulingClient) MarkNoShow(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "MarkNoShow", in, opts)
}

func (c *SchedulingClient) RescheduleAppointment(ctx context.Context, in *RescheduleAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "RescheduleAppointment", in, opts)
}
