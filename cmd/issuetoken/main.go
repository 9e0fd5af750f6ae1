// Command issuetoken mints an operator JWT for the camera registry endpoints.
//
//	JWT_SECRET=... go run ./cmd/issuetoken -operator night-shift -ttl 12h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	jwtmw "surveillance_backend/internal/platform/jwt"
)

func main() {
	operator := flag.String("operator", "", "operator name stored in the sub claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}

	secret := os.Getenv(jwtmw.EnvKeyJWTSecret)
	if secret == "" {
		log.Fatalf("%s is not set", jwtmw.EnvKeyJWTSecret)
	}
	if *ttl <= 0 {
		log.Fatal("ttl must be positive")
	}

	token, err := jwtmw.NewGenerator(secret, *ttl).GenerateToken(*operator)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
