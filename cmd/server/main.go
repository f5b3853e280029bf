package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/ragstack/rag-backend/internal/api"
	"github.com/ragstack/rag-backend/internal/chunking"
	"github.com/ragstack/rag-backend/internal/config"
	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/embedding"
	"github.com/ragstack/rag-backend/internal/mail"
	"github.com/ragstack/rag-backend/internal/memory"
	"github.com/ragstack/rag-backend/internal/store"
	vectormem "github.com/ragstack/rag-backend/internal/vectorstore/memory"
	"github.com/ragstack/rag-backend/internal/vectorstore/milvus"
)

func main() {
	cfg := config.Load()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for one-off document ingestion
	ingestFile := flag.String("ingest", "", "Ingest the given text file and exit")
	flag.Parse()

	ctx := context.Background()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize the Gemini client when a key is present. Only the gemini
	// embedding backend and the chat model need it; the local backend works
	// without one.
	var genaiClient *genai.Client
	if cfg.GeminiAPIKey != "" {
		genaiClient, err = genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer genaiClient.Close()
	} else if cfg.DefaultBackend == "gemini" {
		log.Fatal("GEMINI_API_KEY is required when DEFAULT_EMBEDDING_BACKEND is gemini")
	}

	// Embedding backends: local is always available, gemini only with a client.
	backends := []core.EmbeddingBackend{embedding.NewLocalBackend(cfg.LocalEmbedDim)}
	if genaiClient != nil {
		backends = append(backends, embedding.NewGeminiBackend(genaiClient))
	}
	embeddings := embedding.NewGenerator(cfg.EmbedBatchSize, backends...)

	defaultBackend, err := embeddings.Backend(cfg.DefaultBackend)
	if err != nil {
		log.Fatalf("Default embedding backend unavailable: %v", err)
	}

	// Token codec for the custom chunking strategy. Its absence only disables
	// that one strategy, so a load failure is logged rather than fatal.
	codec, err := chunking.NewTiktokenCodec()
	if err != nil {
		log.Printf("Token codec unavailable, custom chunking disabled: %v", err)
		codec = nil
	}
	chunker := chunking.NewEngine(defaultBackend, codec)

	// Vector index: Milvus when configured, otherwise in-process.
	var index core.VectorIndex
	if cfg.MilvusAddr != "" {
		milvusIndex, err := milvus.New(ctx, cfg.MilvusAddr, cfg.MilvusCollection, defaultBackend.Dimension())
		if err != nil {
			log.Fatalf("Failed to initialize Milvus index: %v", err)
		}
		defer milvusIndex.Close()
		index = milvusIndex
	} else {
		log.Println("MILVUS_ADDR not set, using in-process vector index")
		memIndex, err := vectormem.New(defaultBackend.Dimension())
		if err != nil {
			log.Fatalf("Failed to initialize in-process vector index: %v", err)
		}
		index = memIndex
	}

	// Session cache: Redis when reachable, degraded in-process store otherwise.
	var durable core.SessionStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		redisStore := memory.NewRedisStore(rdb, cfg.SessionTTL, cfg.MaxTurns)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Printf("Redis unreachable at %s: %v", cfg.RedisAddr, err)
		} else {
			durable = redisStore
		}
		cancel()
	}
	sessions := memory.NewCache(durable, cfg.SessionTTL, cfg.MaxTurns)

	chunkParams := core.DefaultChunkParams()
	chunkParams.ChunkSize = cfg.ChunkSize
	chunkParams.Overlap = cfg.ChunkOverlap

	ingestService := core.NewIngestService(chunker, embeddings, index, dbStore, chunkParams)

	// Handle one-off ingestion if the flag is set
	if *ingestFile != "" {
		data, err := os.ReadFile(*ingestFile)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *ingestFile, err)
		}
		result, err := ingestService.Ingest(ctx, *ingestFile, string(data), cfg.DefaultChunking, cfg.DefaultBackend)
		if err != nil {
			log.Fatalf("Ingestion of %s failed: %v", *ingestFile, err)
		}
		log.Printf("Ingestion complete: document %s, %d chunks. Exiting.", result.DocumentID, result.TotalChunks)
		os.Exit(0)
	}

	if genaiClient == nil {
		log.Fatal("GEMINI_API_KEY is required to serve queries")
	}
	llmService := core.NewLLMService(genaiClient)
	agentService := core.NewAgentService(defaultBackend, index, sessions, llmService, cfg.TopK)

	// Booking confirmations go out only when SMTP is configured.
	var mailer *mail.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPSender)
	} else {
		log.Println("SMTP_HOST not set, booking confirmation emails disabled")
	}

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(agentService, ingestService, dbStore, mailer, cfg.DefaultChunking, cfg.DefaultBackend)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second, // Adjusted for potentially slower LLM handshakes
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
