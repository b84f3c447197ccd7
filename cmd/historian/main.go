// cmd/historian/main.go
package main

import (
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	database.ConnectDB()
	defer database.DB.Close()

	hs := historian.NewService(logger)
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	hs.Stop()
	logger.Info("historian shutdown complete")
}
