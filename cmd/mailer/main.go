package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hikoo/napcat-mailer/internal/api"
	"github.com/hikoo/napcat-mailer/internal/biz/usecase"
	"github.com/hikoo/napcat-mailer/internal/conf"
	"github.com/hikoo/napcat-mailer/internal/data"
	"github.com/hikoo/napcat-mailer/internal/infra/ai"
	"github.com/hikoo/napcat-mailer/internal/infra/mail"
	"github.com/hikoo/napcat-mailer/internal/infra/onebot"
	"github.com/hikoo/napcat-mailer/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	provider := conf.NewProvider(cfg)

	// Open the message store
	store, err := data.NewMessageRepo(cfg.DBFile)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	defer store.Close()
	fmt.Printf("[Mailer] Message DB: %s\n", cfg.DBFile)

	// Infra clients
	summarizer := ai.NewClient(provider)
	mailer := mail.NewClient(provider)
	groupInfo := onebot.NewGroupInfoClient(provider)

	// Usecase layer
	filterUC := usecase.NewFilterUsecase(provider)
	ingestUC := usecase.NewIngestUsecase(store, groupInfo, filterUC)
	cycleUC := usecase.NewCycleUsecase(provider, store, summarizer, mailer)

	// Service layer
	pipeline := service.NewPipelineService(cycleUC)
	pipeline.Start()

	scheduler := service.NewScheduler(provider, pipeline)
	scheduler.Start()

	// Gateway listener feeds inbound events into ingestion
	listener := onebot.NewListener(cfg.WSURL, func(raw []byte) {
		if err := ingestUC.OnEvent(context.Background(), raw); err != nil {
			fmt.Printf("[Mailer] Ingest error: %v\n", err)
		}
	})
	listener.Start()

	// Operator HTTP API
	apiServer := api.NewServer(provider, store, cycleUC, summarizer, listener)
	go func() {
		if err := apiServer.Start(); err != nil {
			fmt.Printf("[Mailer] API server error: %v\n", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Starting NapCat Mailer...")
	<-sigCh

	fmt.Println("\nShutting down...")
	apiServer.Stop()
	listener.Stop()
	scheduler.Stop()
	pipeline.Stop()
}
