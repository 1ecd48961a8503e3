package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cs15tutor/tutor/internal/auth"
	"github.com/cs15tutor/tutor/internal/chat"
	"github.com/cs15tutor/tutor/internal/config"
	"github.com/cs15tutor/tutor/internal/db"
	"github.com/cs15tutor/tutor/internal/httpapi"
	"github.com/cs15tutor/tutor/internal/httpapi/handlers"
	"github.com/cs15tutor/tutor/internal/llmproxy"
	"github.com/cs15tutor/tutor/internal/session"
	"github.com/cs15tutor/tutor/internal/tutorlog"
)

func loadSystemPrompt(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt not readable at %s: %v (using fallback)", path, err)
		return "You are a patient teaching assistant for a university data structures course. " +
			"Guide students toward answers instead of handing out solutions."
	}
	return string(b)
}

func buildSessionStore(cfg config.Config) session.Store {
	switch cfg.SessionStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return session.NewRedisStore(client, cfg.SessionTTL)
	default:
		return session.NewMemoryStore(cfg.SessionTTL)
	}
}

func buildRecorder(cfg config.Config) chat.Recorder {
	switch cfg.LogSink {
	case "none":
		return tutorlog.NopSink{}
	case "rabbit":
		pub, err := tutorlog.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit publisher: %v", err)
		}
		return tutorlog.NewQueueSink(pub)
	default:
		gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		if err := tutorlog.AutoMigrate(gdb); err != nil {
			log.Fatalf("automigrate: %v", err)
		}
		return tutorlog.NewDBSink(tutorlog.NewRepo(gdb))
	}
}

func main() {
	cfg := config.Load()

	proxy := llmproxy.NewClient(cfg.ProxyEndpoint, cfg.ProxyAPIKey)

	conversations := chat.NewConversations(loadSystemPrompt(cfg.SystemPromptPath), cfg.MaxTurns)
	svc := chat.NewService(conversations, proxy, proxy, buildRecorder(cfg), chat.Options{
		Model:              cfg.Model,
		Temperature:        cfg.Temperature,
		GenerateTimeout:    cfg.GenerateTimeout,
		RetrievalSessionID: cfg.RetrievalSessionID,
		RAGThreshold:       cfg.RAGThreshold,
		RAGTopK:            cfg.RAGTopK,
	})

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	roster := auth.NewRoster(cfg.AuthorizedUsers, cfg.DevMode)

	var dev auth.Verifier
	if cfg.DevMode {
		log.Printf("DEV MODE enabled: direct-credential login is reachable")
		dev = auth.NewDevVerifier()
	}

	h := handlers.NewHandler(cfg, svc, issuer, auth.NewUpstreamVerifier(), dev, roster, buildSessionStore(cfg))
	router := httpapi.NewRouter(h)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("tutor api listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
