package extract

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tablecall/agent/internal/booking"
)

const (
	ServiceName   = "booking.extract.v1.Extractor"
	extractMethod = "/" + ServiceName + "/Extract"
)

// rpcServer is the handler type checked by grpc.RegisterService.
type rpcServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*rpcServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/extract/v1/extract.proto",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rpcServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: extractMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(rpcServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes an Extractor over gRPC.
type Server struct {
	inner Extractor
	log   *zap.Logger
}

func NewServer(inner Extractor, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{inner: inner, log: log}
}

// Register attaches the service to s.
func (s *Server) Register(g *grpc.Server) { g.RegisterService(&serviceDesc, s) }

func (s *Server) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	e, err := s.inner.Extract(ctx, req)
	if err != nil {
		s.log.Warn("extract failed", zap.String("state", string(req.State)), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(e.Map())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Client is an Extractor that calls the sidecar. The connection is created
// on first use and re-created once when the sidecar is unavailable.
type Client struct {
	addr string
	opts []grpc.DialOption

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

func NewClient(addr string, opts ...grpc.DialOption) *Client {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Client{addr: addr, opts: opts}
}

// Conn returns the shared connection, dialing it lazily.
func (c *Client) Conn() (*grpc.ClientConn, error) {
	c.mu.RLock()
	if c.conn != nil {
		defer c.mu.RUnlock()
		return c.conn, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.NewClient(c.addr, c.opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial extractor %s", c.addr)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) Extract(ctx context.Context, req Request) (Extraction, error) {
	in, err := requestToStruct(req)
	if err != nil {
		return Extraction{}, err
	}
	for attempt := 0; ; attempt++ {
		conn, err := c.Conn()
		if err != nil {
			return Extraction{}, err
		}
		out := new(structpb.Struct)
		err = conn.Invoke(ctx, extractMethod, in, out)
		if err == nil {
			return FromMap(out.AsMap()), nil
		}
		if status.Code(err) != codes.Unavailable || attempt > 0 {
			metricFailures.WithLabelValues("rpc").Inc()
			return Extraction{}, errors.Wrap(err, "extractor rpc")
		}
		if err := c.reconnect(ctx, attempt); err != nil {
			return Extraction{}, err
		}
	}
}

// reconnect drops the connection and waits a jittered backoff before the
// next Conn call dials again.
func (c *Client) reconnect(ctx context.Context, attempt int) error {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	base := 100 * time.Millisecond
	sleep := time.Duration(1<<uint(min(attempt, 4))) * base
	jitter := time.Duration(rand.Int63n(int64(base)))
	timer := time.NewTimer(sleep + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	metricRPCReconnects.Inc()
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func requestToStruct(req Request) (*structpb.Struct, error) {
	raw, err := json.Marshal(req.Context)
	if err != nil {
		return nil, errors.Wrap(err, "encode context")
	}
	var ctxMap map[string]any
	if err := json.Unmarshal(raw, &ctxMap); err != nil {
		return nil, errors.Wrap(err, "encode context")
	}
	s, err := structpb.NewStruct(map[string]any{
		"utterance": req.Utterance,
		"state":     string(req.State),
		"today":     req.Today,
		"context":   ctxMap,
	})
	return s, errors.Wrap(err, "encode request")
}

func requestFromStruct(in *structpb.Struct) (Request, error) {
	m := in.AsMap()
	utterance, _ := m["utterance"].(string)
	if utterance == "" {
		return Request{}, errors.New("utterance is required")
	}
	req := Request{Utterance: utterance}
	if s, ok := m["state"].(string); ok {
		req.State = booking.State(s)
	}
	req.Today, _ = m["today"].(string)
	if cm, ok := m["context"].(map[string]any); ok {
		raw, err := json.Marshal(cm)
		if err != nil {
			return Request{}, err
		}
		if err := json.Unmarshal(raw, &req.Context); err != nil {
			return Request{}, errors.Wrap(err, "decode context")
		}
	}
	return req, nil
}
