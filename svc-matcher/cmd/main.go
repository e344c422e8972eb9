package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/engine"
	metric "github.com/etesami/template-matching-demo/pkg/metric"
	"github.com/etesami/template-matching-demo/pkg/registry"
	"github.com/etesami/template-matching-demo/pkg/rpc"
	utils "github.com/etesami/template-matching-demo/pkg/utils"

	"github.com/etesami/template-matching-demo/svc-matcher/internal"
	"google.golang.org/grpc"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	// Setup the metric service for tracking local processing metrics
	sentDataBuckets := utils.ParseBuckets(os.Getenv("SENT_DATA_BUCKETS"))
	procTimeBuckets := utils.ParseBuckets(os.Getenv("PROC_TIME_BUCKETS"))
	rttTimeBuckets := utils.ParseBuckets(os.Getenv("RTT_TIME_BUCKETS"))
	scoreBuckets := utils.ParseBuckets(os.Getenv("SCORE_BUCKETS"))
	m := &metric.Metric{}
	m.RegisterMetrics(sentDataBuckets, procTimeBuckets, rttTimeBuckets, scoreBuckets)

	// Local service initialization (matcher) to receive scoring requests
	svcHost := os.Getenv("SVC_MATCHER_HOST")
	svcPort := os.Getenv("SVC_MATCHER_PORT")
	if svcPort == "" || svcHost == "" {
		panic("SVC_MATCHER_HOST or SVC_MATCHER_PORT environment variable is not set")
	}
	localSvc := &api.Service{
		Address: svcHost,
		Port:    svcPort,
	}

	pairsFile := os.Getenv("PAIRS_FILE")
	if pairsFile == "" {
		panic("PAIRS_FILE environment variable is not set")
	}
	pairs, err := registry.LoadFromFile(pairsFile)
	if err != nil {
		log.Fatalf("Failed to load pairs: %v", err)
	}
	defer pairs.Close()
	for _, p := range pairs.List() {
		log.Printf("Loaded pair [%s]: template [%dx%d] scene [%dx%d]\n",
			p.Name, p.TemplateWidth, p.TemplateHeight, p.SceneWidth, p.SceneHeight)
	}

	cacheSize, _ := strconv.Atoi(os.Getenv("CACHE_SIZE"))
	maxCandidates, _ := strconv.Atoi(os.Getenv("MAX_CANDIDATES"))
	s := &internal.Server{
		Engine: engine.New(pairs, m, engine.Config{
			CacheSize:     cacheSize,
			MaxCandidates: maxCandidates,
		}),
	}

	// We listen on all interfaces
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", localSvc.Port))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	grpcServer := grpc.NewServer(rpc.ServerOptions()...)
	rpc.RegisterMatcherServer(grpcServer, s)

	go func() {
		log.Printf("starting gRPC server on port %s:%s\n", localSvc.Address, localSvc.Port)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	metricAddr := os.Getenv("METRIC_ADDR")
	metricPort := os.Getenv("METRIC_PORT")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", metricAddr, metricPort),
		Handler: mux,
	}

	go func() {
		log.Printf("Starting metrics server on %s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Set up channel to listen for interrupt or terminate signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Printf("Received shutdown signal\n")
	grpcServer.GracefulStop()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("Error shutting down server: %v\n", err)
	}
	st := s.Engine.CacheStats()
	log.Printf("Cache stats: entries [%d] hits [%d] misses [%d] evictions [%d]\n", st.Entries, st.Hits, st.Misses, st.Evictions)
	log.Printf("Server shut down gracefully\n")
}
