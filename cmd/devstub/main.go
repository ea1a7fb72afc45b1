package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"minichat/config"
	"minichat/internal/devstub"
	"minichat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	if cfg.AppMode == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	port := os.Getenv("STUB_PORT")
	if port == "" {
		port = "8080"
	}

	server := devstub.NewServer(l)
	l.Infof("devstub listening on :%s", port)
	if err := server.Router().Run(":" + port); err != nil {
		log.Fatalf("devstub failed: %v", err)
	}
}
