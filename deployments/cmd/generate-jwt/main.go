// Dev-утилита: генерирует JWT для локального тестирования tracking-сервиса.
// С флагом -with-session токен также прописывается как активная сессия
// в Redis, иначе WebSocket-аутентификация отклонит подключение.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pontipilat22/logcompany1/internal/shared/auth"
	"github.com/pontipilat22/logcompany1/internal/shared/config"
	"github.com/pontipilat22/logcompany1/internal/shared/session"
)

func main() {
	userID := flag.String("user", "550e8400-e29b-41d4-a716-446655440000", "User ID (UUID)")
	role := flag.String("role", "DRIVER", "Role (DRIVER|DISPATCHER|ADMIN)")
	deviceID := flag.String("device", "dev-device", "Device ID")
	withSession := flag.Bool("with-session", false, "store the token as the active session in Redis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	token, err := jwtService.GenerateToken(*userID, *role, *deviceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating JWT token: %v\n", err)
		os.Exit(1)
	}

	if *withSession {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		store, err := session.NewStore(ctx, cfg.Redis)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to Redis: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		ttl := time.Duration(cfg.JWT.ExpiryMinutes) * time.Minute
		if err := store.Set(ctx, *userID, session.Session{DeviceID: *deviceID, Token: token}, ttl); err != nil {
			fmt.Fprintf(os.Stderr, "Error storing session: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Session stored for user %s (ttl %s)\n", *userID, ttl)
	}

	fmt.Printf("\n✅ JWT Token generated successfully!\n\n")
	fmt.Printf("User ID:   %s\n", *userID)
	fmt.Printf("Role:      %s\n", *role)
	fmt.Printf("Device:    %s\n", *deviceID)
	fmt.Printf("\nToken:\n%s\n", token)
	fmt.Printf("\n📋 Copy this for API requests:\n")
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("\n💡 Example curl:\n")
	fmt.Printf("curl -X POST http://localhost:%d/api/v1/tracking/gps \\\n", cfg.HTTP.Port)
	fmt.Printf("  -H 'Authorization: Bearer %s' \\\n", token)
	fmt.Printf("  -H 'Content-Type: application/json' \\\n")
	fmt.Printf("  -d '{\n")
	fmt.Printf("    \"latitude\": 55.7558,\n")
	fmt.Printf("    \"longitude\": 37.6173,\n")
	fmt.Printf("    \"recorded_at\": \"%s\"\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Printf("  }'\n\n")
}
