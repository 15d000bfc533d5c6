package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/olibuijr/docvault/internal/app"
	"github.com/olibuijr/docvault/internal/config"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// getSecret returns the key-derivation passphrase: from config when set,
// otherwise read from the terminal without echo.
func getSecret(cfg *config.Config) ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}
	fmt.Fprint(os.Stderr, "Enter database passphrase: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func main() {
	cfg := config.LoadConfig()

	secret, err := getSecret(cfg)
	if err != nil {
		log.Printf("read passphrase: %v", err)
		os.Exit(1)
	}

	a, err := app.NewApp(cfg, secret)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	a.Run(context.Background())
}
