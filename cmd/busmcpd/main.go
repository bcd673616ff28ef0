// Command busmcpd is the RPC daemon: it serves the MCP tool surface over
// Streamable HTTP and runs every background worker (file-reservation
// cleanup, ACK-TTL scan, WBQ drain, touch flush). Grounded on the
// teacher's cmd/cliaimonitor/main.go construction order (load config,
// build components, bind the listener, install signal handling) adapted
// from a dashboard+captain process to the bus's MCP-only daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/agentmail/bus/internal/bootstrap2"
)

func main() {
	configPath := flag.String("config", "configs/bus.yaml", "Bus configuration file")
	flag.Parse()

	cfg, err := bootstrap2.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap2.Init(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.Run(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/mcp", app.MCP.ServeStreamableHTTP)
	router.HandleFunc("/mcp/sse", app.MCP.ServeSSE)
	router.HandleFunc("/mcp/messages/", app.MCP.ServeMessage)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	fmt.Printf("agentmail-bus MCP daemon listening on %s (diagnostics on %s)\n", cfg.HTTPAddr, cfg.DiagAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "mcp listener failed: %v\n", err)
		}
	case <-sig:
		fmt.Println("shutting down...")
	}

	cancel()
	_ = httpServer.Close()
	if err := app.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
}
