package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradecopia/vps-service/internal/client"
	"github.com/tradecopia/vps-service/internal/config"
	"github.com/tradecopia/vps-service/internal/db"
	"github.com/tradecopia/vps-service/internal/http"
	"github.com/tradecopia/vps-service/internal/repository"
	"github.com/tradecopia/vps-service/internal/service"
)

func main() {
	log.Println("Starting VPS Service...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	mongoClient, err := db.Connect(cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Disconnect(mongoClient)

	recordRepo := repository.NewVpsRecordRepository(db.Collection(mongoClient, cfg.Mongo))
	virtClient := client.NewVirtualizorClient(cfg.Virtualizor)
	provisionService := service.NewProvisionService(cfg, virtClient, recordRepo)

	server := http.NewServer(cfg, provisionService)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server exited")
}
