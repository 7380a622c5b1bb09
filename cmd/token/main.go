// Package main mints access tokens for local development
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/infrastructure/security"
	"github.com/nutriscan/tracker/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	user := flag.String("user", "", "user id (UUID) to put in the subject")
	roles := flag.String("roles", "", "comma separated roles, e.g. admin")
	ttl := flag.Duration("ttl", 0, "token lifetime (default auth.jwt_expiration)")
	flag.Parse()

	userID, err := uuid.Parse(*user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -user %q: %v\n", *user, err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not set")
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.Auth.JWTExpiration = *ttl
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := security.NewTokenService(cfg.Auth, nil, log).GenerateAccessToken(userID, roleList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(cfg.Auth.JWTExpiration).Format(time.RFC3339))
}
