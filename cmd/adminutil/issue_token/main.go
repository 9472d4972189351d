package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	flag "github.com/spf13/pflag"
)

// Mints a bearer token for local testing against the websocket and REST
// endpoints. The server verifies the same claims.
func main() {
	userID := flag.StringP("user", "u", "", "User id to put in the token")
	role := flag.StringP("role", "r", "member", "Role claim: member or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "Signing secret (defaults to $JWT_SECRET)")
	flag.Parse()

	if *userID == "" || *secret == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/issue_token --user <id> [--role admin] [--secret s]")
	}
	if *role != "member" && *role != "admin" {
		log.Fatalf("unknown role %q", *role)
	}

	claims := jwt.MapClaims{
		"user_id": *userID,
		"role":    *role,
		"exp":     time.Now().Add(*ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(*secret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(signed)
}
