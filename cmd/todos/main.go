// Command todos serves the per-user todo API.
//
// @title                      Todos API
// @version                    1.0
// @description                Per-user todo lists behind identity-provider bearer tokens.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Identity provider ID token: "Bearer <token>"
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("todos exited with error")
		stop()
		os.Exit(1)
	}
}
