package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"camclip/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		subject string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "subject", "operator", "Name recorded in the token's subject claim")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	secret := strings.TrimSpace(os.Getenv("OPERATOR_JWT_SECRET"))
	if secret == "" {
		fmt.Fprintln(os.Stderr, "OPERATOR_JWT_SECRET is required")
		os.Exit(1)
	}

	token, err := middleware.SignOperatorToken(secret, subject, ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
