// Command devtoken prints a signed bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/auth"
)

func main() {
	user := flag.String("user", "dev-user", "subject of the token")
	role := flag.String("role", "customer", "role claim; use the configured admin role for admin access")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	token, err := auth.NewTokenService(cfg.Auth).Issue(*user, *role, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
