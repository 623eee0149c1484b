package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/do"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"

	"github.com/status-im/dapp-connector/common"
	"github.com/status-im/dapp-connector/logutils"
	"github.com/status-im/dapp-connector/metrics"
	"github.com/status-im/dapp-connector/params"
)

const shutdownTimeout = 5 * time.Second

// serve resumes the persisted session and serves the RPC namespaces until
// ctx is done.
func serve(ctx context.Context, container *do.Injector) error {
	logger := logutils.ZapLogger().Named("connectord")
	config := do.MustInvoke[*params.ConnectorConfig](container)

	service, err := do.Invoke[*connectorService](container)
	if err != nil {
		return err
	}
	server, err := do.Invoke[*rpcServer](container)
	if err != nil {
		return err
	}
	if err := service.Start(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", server)
	mux.Handle("/ws", server.WebsocketHandler([]string{"*"}))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.HTTPHost, config.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if config.MetricsEnabled {
		metricsServer := metrics.NewMetricsServer(config.MetricsPort, gethmetrics.DefaultRegistry)
		go metricsServer.Listen()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				logger.Warn("failed to stop metrics server", zap.Error(err))
			}
		}()
	}

	errWg, errCtx := errgroup.WithContext(ctx)

	errWg.Go(func() error {
		defer common.LogOnPanic()
		logger.Info("serving connector rpc", zap.String("addr", srv.Addr), zap.String("version", params.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	errWg.Go(func() error {
		defer common.LogOnPanic()
		<-errCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(stopCtx)
	})

	return errWg.Wait()
}
