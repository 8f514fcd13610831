// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/shovegame/shove/internal/auth"
	"github.com/shovegame/shove/internal/config"
	"github.com/shovegame/shove/internal/handlers"
	"github.com/shovegame/shove/internal/lobby"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)

	if err := auth.Init(); err != nil {
		log.Fatalf("auth keys: %v", err)
	}
	if cfg.DevTools {
		// The token only works against this process; print it so an operator
		// can poke the dev-tools endpoints.
		token, err := auth.CreateDevToken(0)
		if err != nil {
			log.Fatalf("dev token: %v", err)
		}
		logger.Infof("dev-tools token: %s", token)
	}

	manager := lobby.NewManager(logger, cfg.ManagerConfig())
	defer manager.Close()

	srv := handlers.NewServer(logger, manager, cfg)

	logger.Infof("Running on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv.Mux()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
