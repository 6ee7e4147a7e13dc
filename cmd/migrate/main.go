// migrate applies the embedded otp_challenges migrations; go run ./cmd/migrate -direction up|down.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"otp-gateway/internal/config"
	"otp-gateway/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	if v, dirty, err := migrate.Version(cfg.DatabaseURL); err == nil {
		fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
	}
}
