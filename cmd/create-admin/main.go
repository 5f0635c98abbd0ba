package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"dropmail/backend/internal/auth"
	"dropmail/backend/internal/config"
	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
	"dropmail/backend/internal/storage/postgres"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: create-admin <email> <password>")
		os.Exit(1)
	}

	email := os.Args[1]
	password := os.Args[2]

	// 加载配置（管理工具无需 JWT secret）
	cfg, err := config.LoadReceiver()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("No database configured. Set DROPMAIL_DATABASE_TYPE and DROPMAIL_DATABASE_DSN.")
		os.Exit(1)
	}

	store, err := postgres.NewStore(cfg.Database.Type, cfg.Database.DSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// 验证密码强度
	if err := auth.ValidatePassword(password); err != nil {
		fmt.Printf("Invalid password: %v\n", err)
		os.Exit(1)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	// 管理员跳过审批流程
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashedPassword,
		IsAdmin:      true,
		IsApproved:   true,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.CreateUser(user); err != nil {
		if err == storage.ErrEmailExists {
			fmt.Printf("User with email %s already exists\n", email)
		} else {
			fmt.Printf("Failed to create user: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("✓ Admin user created successfully!\n")
	fmt.Printf("  ID:    %s\n", user.ID)
	fmt.Printf("  Email: %s\n", user.Email)
}
