package cli

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/arcreview/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the gRPC health service when configured)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := httpapi.NewServer(httpapi.Dependencies{
				Logger:         log,
				Addr:           cfg.HTTPAddr,
				Workflow:       a.workflow,
				Monitor:        a.monitor,
				WarningDays:    cfg.DeadlineWarningDays,
				MetricsEnabled: cfg.MetricsEnabled,
				CORSOrigins:    cfg.CORSOrigins,
				RateLimit:      cfg.RateLimit,
			})

			ctx, stop := context.WithCancel(cmd.Context())
			defer stop()

			var grpcServer *grpc.Server
			if cfg.GRPCAddr != "" {
				lis, err := net.Listen("tcp", cfg.GRPCAddr)
				if err != nil {
					return err
				}
				grpcServer = grpc.NewServer()
				hs := health.NewServer()
				hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
				healthpb.RegisterHealthServer(grpcServer, hs)
				go func() {
					log.Infof("grpc health listening on %s", cfg.GRPCAddr)
					if err := grpcServer.Serve(lis); err != nil {
						log.WithError(err).Error("grpc server error")
						stop()
					}
				}()
			}

			go func() {
				log.Infof("listening on %s", cfg.HTTPAddr)
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("server error")
					stop()
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if grpcServer != nil {
				grpcServer.GracefulStop()
			}
			return srv.Shutdown(shutdownCtx)
		},
	}
}
