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

// Package main implements the sample registry server.  The samples of an
// analysis run are registered either from a sample list given at startup or
// by the analysis framework over gRPC, and the server terminates once the
// framework calls Finalize.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/9rum/meanalysis/internal/chain"
	"github.com/9rum/meanalysis/internal/config"
	"github.com/9rum/meanalysis/registry"
	"github.com/golang/glog"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

func main() {
	port := flag.Int("p", 50051, "The server port")
	samples := flag.String("config", "", "Sample list to register at startup (.yaml or .json)")
	metrics := flag.String("metrics", "", "Address to serve Prometheus metrics on; empty disables")
	gcs := flag.Bool("gcs", false, "Open gs:// input files with Google Cloud Storage")
	flag.Parse()

	if err := serve(*port, *samples, *metrics, *gcs); err != nil {
		glog.Fatalf("failed to serve: %v", err)
	}
}

func serve(port int, samples, metrics string, gcs bool) error {
	ctx := context.Background()

	opener := chain.FileOpener{}
	if gcs {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		opener.Client = client
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}

	server, srv := newServer(opener)
	if samples != "" {
		if err = preload(ctx, srv, samples); err != nil {
			return err
		}
	}
	if metrics != "" {
		go serveMetrics(metrics)
	}
	glog.Infof("server listening at %v", lis.Addr())

	return server.Serve(lis)
}

func newServer(opener chain.Opener) (*grpc.Server, registry.RegistryServer) {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(),
		),
	)
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func(done <-chan os.Signal, server *grpc.Server) {
		<-done
		server.GracefulStop()
	}(done, server)

	srv := registry.NewRegistryServer(done, opener, prometheus.DefaultRegisterer)
	registry.RegisterRegistryServer(server, srv)

	return server, srv
}

// preload registers the samples listed in the given file.
func preload(ctx context.Context, srv registry.RegistryServer, path string) error {
	records, err := config.Load(path)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err = srv.Register(ctx, rec.Struct); err != nil {
			return err
		}
	}
	glog.Infof("registered %d samples from %s", len(records), path)
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	glog.Infof("metrics listening at %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		glog.Errorf("metrics server failed: %v", err)
	}
}
