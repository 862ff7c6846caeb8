package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/internal/server"
	"github.com/DoBuiThao/hoxchess/internal/transport"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameServer := server.New(hub.NewHub(nil))
	sessions := transport.NewSessions()
	srv := &http.Server{
		Addr:              *addr,
		Handler:           transport.NewMux(gameServer, sessions),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down http server: %v", err)
		}
		if err := sessions.Close(); err != nil {
			log.Printf("Error closing sessions: %v", err)
		}
	}()

	log.Printf("Starting server on %s", *addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Error starting server: %v", err)
	}
	<-ctx.Done()
}
