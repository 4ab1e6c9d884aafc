package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/unitasklabs/unitask/internal/db"
)

func main() {
	email := flag.String("email", "", "Email of the user to mark as verified")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run cmd/adminutil/verify_user/main.go -email user@example.com")
	}

	_ = godotenv.Load()
	db.Init()

	ct, err := db.Conn.Exec(context.Background(), `UPDATE profiles SET verified = TRUE WHERE email = $1`, *email)
	if err != nil {
		log.Fatalf("failed to verify user: %v", err)
	}
	if ct.RowsAffected() == 0 {
		log.Fatalf("no user found with email: %s", *email)
	}

	fmt.Printf("User %s marked as verified.\n", *email)
}
