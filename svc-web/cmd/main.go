package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/engine"
	metric "github.com/etesami/template-matching-demo/pkg/metric"
	"github.com/etesami/template-matching-demo/pkg/registry"
	"github.com/etesami/template-matching-demo/pkg/store"
	utils "github.com/etesami/template-matching-demo/pkg/utils"
	"github.com/etesami/template-matching-demo/svc-web/internal"
)

func main() {

	// Setup the metric service for tracking metrics both locally and remote services
	sentDataBuckets := utils.ParseBuckets(os.Getenv("SENT_DATA_BUCKETS"))
	procTimeBuckets := utils.ParseBuckets(os.Getenv("PROC_TIME_BUCKETS"))
	rttTimeBuckets := utils.ParseBuckets(os.Getenv("RTT_TIME_BUCKETS"))
	scoreBuckets := utils.ParseBuckets(os.Getenv("SCORE_BUCKETS"))
	m := &metric.Metric{}
	m.RegisterMetrics(sentDataBuckets, procTimeBuckets, rttTimeBuckets, scoreBuckets)

	svcHost := os.Getenv("SVC_WEB_HOST")
	svcPort := os.Getenv("SVC_WEB_PORT")
	if svcPort == "" {
		panic("SVC_WEB_PORT environment variable is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sessions idle for longer than SESSION_TTL are dropped
	sessionTTL := 30 * time.Minute
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid SESSION_TTL: %v", err)
		}
		sessionTTL = d
	}
	sessions := internal.NewSessions(sessionTTL)
	go sessions.Run(ctx, min(sessionTTL, time.Minute))

	s := &internal.Server{
		Sessions: sessions,
		Metric:   m,
		Timeout:  30 * time.Second,
	}

	// Use the remote matcher when one is configured, otherwise score in-process
	remoteHost := os.Getenv("REMOTE_MATCHER_HOST")
	remotePort := os.Getenv("REMOTE_MATCHER_PORT")
	if remoteHost != "" && remotePort != "" {
		targetSvc := api.Service{
			Address: remoteHost,
			Port:    remotePort,
		}
		clientRef := &utils.GrpcClient{Observer: internal.ObserveRemote("matcher", m)}
		go utils.MonitorConnection(ctx, targetSvc, clientRef, 5*time.Second)
		s.Scorer = &internal.RemoteScorer{ClientRef: clientRef}
		log.Printf("Using remote matcher at %s\n", targetSvc.Target())
	} else {
		pairsFile := os.Getenv("PAIRS_FILE")
		if pairsFile == "" {
			panic("PAIRS_FILE or REMOTE_MATCHER_HOST/REMOTE_MATCHER_PORT must be set")
		}
		pairs, err := registry.LoadFromFile(pairsFile)
		if err != nil {
			log.Fatalf("Failed to load pairs: %v", err)
		}
		defer pairs.Close()
		cacheSize, _ := strconv.Atoi(os.Getenv("CACHE_SIZE"))
		maxCandidates, _ := strconv.Atoi(os.Getenv("MAX_CANDIDATES"))
		s.Scorer = engine.New(pairs, m, engine.Config{
			CacheSize:     cacheSize,
			MaxCandidates: maxCandidates,
		})
		log.Printf("Using in-process matcher with %d pairs\n", len(pairs.List()))
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			log.Fatalf("Failed to open attempt store: %v", err)
		}
		defer st.Close()
		s.Store = st
		log.Printf("Recording attempts in %s\n", st.Path())
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", svcHost, svcPort),
		Handler: s.Routes(),
	}

	go func() {
		log.Printf("Starting web server on %s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Set up channel to listen for interrupt or terminate signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Printf("Received shutdown signal\n")
	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("Error shutting down server: %v\n", err)
	}
	log.Printf("Server shut down gracefully\n")
}
