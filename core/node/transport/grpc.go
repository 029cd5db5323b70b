package transport

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// gobCodecName registers a gob-based grpc.encoding.Codec standing in for
// protoc-generated marshaling: this environment has no protoc/buf run
// available to generate real protobuf stubs, and gob is already this
// module's established wire codec elsewhere (core/exec.Box). Every
// message type below round-trips through gob rather than proto.Message.
const gobCodecName = "gob"

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return gobCodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// PriceQuoteRequest/Reply etc. are the wire messages for the cluster's
// client-facing surface: price_quote, payment_receipt, invoke_compute,
// generate_preprocessing, and the DKG and sign requests. Fields are kept
// minimal (enough to exercise the round trip) rather than a full field
// set for every operation variant, since the real request/response
// shapes live in node/quote and node/storage, not in the transport.
type PriceQuoteRequest struct {
	Fingerprint string
	Operation   string
}

type PriceQuoteReply struct {
	ComputeID string
	Nonce     string
	Fees      uint64
}

type PaymentReceiptRequest struct {
	Nonce  string
	TxHash string
}

type PaymentReceiptReply struct {
	Signature []byte
}

type InvokeComputeRequest struct {
	ComputeID string
	Receipt   []byte
}

type InvokeComputeReply struct {
	Accepted bool
}

type GeneratePreprocessingRequest struct {
	Kind      string
	BatchSize uint64
}

type GeneratePreprocessingReply struct {
	Generated uint64
}

// GenerateDkgRequest asks the cluster to run a threshold keygen; Curve
// selects ecdsa.ECDSA or ecdsa.EdDSA.
type GenerateDkgRequest struct {
	Curve     uint8
	Threshold int
}

type GenerateDkgReply struct {
	Aborted     bool
	AbortReason string
	PublicKey   []byte
}

// SignRequest asks the cluster to run a threshold signature over Digest
// using a previously generated share.
type SignRequest struct {
	Curve  uint8
	Digest []byte
}

type SignReply struct {
	Aborted     bool
	AbortReason string
	Signature   []byte
}

// ClusterService is the node-facing implementation of the surface below;
// a real node supplies one backed by node/quote, node/storage,
// core/preprocessing.Scheduler, and core/protocol/ecdsa.
type ClusterService interface {
	PriceQuote(ctx context.Context, req *PriceQuoteRequest) (*PriceQuoteReply, error)
	PaymentReceipt(ctx context.Context, req *PaymentReceiptRequest) (*PaymentReceiptReply, error)
	InvokeCompute(ctx context.Context, req *InvokeComputeRequest) (*InvokeComputeReply, error)
	GeneratePreprocessing(ctx context.Context, req *GeneratePreprocessingRequest) (*GeneratePreprocessingReply, error)
	GenerateDkg(ctx context.Context, req *GenerateDkgRequest) (*GenerateDkgReply, error)
	Sign(ctx context.Context, req *SignRequest) (*SignReply, error)
}

// serviceName is the gRPC service path a protoc-generated stub would
// normally derive from a .proto package+service declaration.
const serviceName = "nilvm.cluster.v1.Cluster"

// ServiceDesc is the hand-built grpc.ServiceDesc standing in for a
// protoc-generated one, registering exactly the six unary RPCs
// ClusterService implements.
func ServiceDesc(impl ClusterService) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ClusterService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "PriceQuote", Handler: unaryHandler(impl.PriceQuote, func() *PriceQuoteRequest { return &PriceQuoteRequest{} })},
			{MethodName: "PaymentReceipt", Handler: unaryHandler(impl.PaymentReceipt, func() *PaymentReceiptRequest { return &PaymentReceiptRequest{} })},
			{MethodName: "InvokeCompute", Handler: unaryHandler(impl.InvokeCompute, func() *InvokeComputeRequest { return &InvokeComputeRequest{} })},
			{MethodName: "GeneratePreprocessing", Handler: unaryHandler(impl.GeneratePreprocessing, func() *GeneratePreprocessingRequest { return &GeneratePreprocessingRequest{} })},
			{MethodName: "GenerateDkg", Handler: unaryHandler(impl.GenerateDkg, func() *GenerateDkgRequest { return &GenerateDkgRequest{} })},
			{MethodName: "Sign", Handler: unaryHandler(impl.Sign, func() *SignRequest { return &SignRequest{} })},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "nilvm/cluster.proto",
	}
}

// unaryHandler adapts one ClusterService method into the grpc.methodHandler
// shape grpc.ServiceDesc.Methods expects, generically over the request type.
func unaryHandler[Req any, Reply any](fn func(context.Context, *Req) (*Reply, error), newReq func() *Req) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, status.Errorf(codes.Internal, "decoding request: %v", err)
		}
		if interceptor == nil {
			return fn(ctx, req)
		}
		info := &grpc.UnaryServerInfo{FullMethod: serviceName}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// Serve starts a gRPC server on addr exposing impl via ServiceDesc,
// using the gob codec registered above, blocking until ctx is cancelled
// or the listener fails.
func Serve(ctx context.Context, addr string, impl ClusterService) error {
	srv := grpc.NewServer()
	srv.RegisterService(ServiceDesc(impl), impl)

	lis, err := newListener(addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
