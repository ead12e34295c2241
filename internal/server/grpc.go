package server

import (
	"FlightSurety/internal/observability"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "flightsurety.v1.FlightSurety"

// unary builds a method descriptor for a Service method, in the shape
// protoc-gen-go-grpc generates.
func unary[Req any, Resp any](name string, fn func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(*Service), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(srv.(*Service), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the FlightSurety service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		unary("Submit", (*Service).Submit),
		unary("GetStatus", (*Service).GetStatus),
		unary("GetAirline", (*Service).GetAirline),
		unary("GetFlight", (*Service).GetFlight),
		unary("GetPassenger", (*Service).GetPassenger),
		unary("GetOracleIndexes", (*Service).GetOracleIndexes),
		unary("ListFlights", (*Service).ListFlights),
		unary("GetPassengerPolicies", (*Service).GetPassengerPolicies),
		unary("GetPayoutHistory", (*Service).GetPayoutHistory),
		unary("TakeSnapshot", (*Service).TakeSnapshot),
		unary("ListAirlines", (*Service).ListAirlines),
		unary("GetStatusHistory", (*Service).GetStatusHistory),
		unary("GetJournalHistory", (*Service).GetJournalHistory),
		unary("RebuildProjections", (*Service).RebuildProjections),
		unary("VerifyIntegrity", (*Service).VerifyIntegrity),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flightsurety/v1/service",
}

// metricsInterceptor records request counts, latency and error codes.
func metricsInterceptor(m *observability.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if m != nil {
			method := info.FullMethod
			m.QueryRequests.WithLabelValues(method).Inc()
			m.QueryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			if err != nil {
				m.QueryErrors.WithLabelValues(method, status.Code(err).String()).Inc()
			}
		}
		return resp, err
	}
}

// GRPCServer wraps the gRPC server and the HTTP gateway.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	service       *Service
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// NewGRPCServer creates a gRPC server with the service and health checks
// registered.
func NewGRPCServer(grpcAddr, httpAddr string, svc *Service, hc *observability.HealthChecker, metrics *observability.Metrics, logger zerolog.Logger) *GRPCServer {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(metricsInterceptor(metrics)))
	grpcServer.RegisterService(&ServiceDesc, svc)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &GRPCServer{
		grpcServer:    grpcServer,
		service:       svc,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: hc,
		metrics:       metrics,
		logger:        logger,
	}
}

// StartGRPC serves gRPC until ctx is cancelled.
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTPGateway serves the HTTP/JSON API until ctx is cancelled.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	mux := runtime.NewServeMux()
	if err := RegisterGateway(mux, s.service); err != nil {
		return fmt.Errorf("register gateway: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           httpMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpAddr).Msg("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
