package main

import (
	"context"
	"fmt"
	"log"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sudo-init-do/skillbridge/internal/config"
	"github.com/sudo-init-do/skillbridge/internal/store"
)

func main() {
	email := flag.StringP("email", "e", "", "Email of the user to promote to admin")
	demote := flag.Bool("demote", false, "Set the user back to member instead")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/promote_admin --email user@example.com")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	role := "admin"
	if *demote {
		role = "member"
	}
	ct, err := pool.Exec(ctx, `UPDATE users SET role = $1 WHERE email = $2`, role, *email)
	if err != nil {
		log.Fatalf("failed to update role: %v", err)
	}
	if ct.RowsAffected() == 0 {
		log.Fatalf("no user found with email: %s", *email)
	}

	fmt.Printf("User %s is now %s.\n", *email, role)
}
