package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"counseling-platform/internal/config"
	pg "counseling-platform/internal/infra/db/postgres"
	"counseling-platform/internal/infra/web"
)

// Sets up a clean, predictable local state for manual end-to-end testing:
// creates the schema if missing, seeds one user and one counsellor with a
// funded wallet, and prints ready-to-use bearer tokens for both.

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id         BIGSERIAL PRIMARY KEY,
    username   TEXT NOT NULL UNIQUE,
    role       TEXT NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallets (
    user_id    BIGINT PRIMARY KEY REFERENCES users(id),
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chats (
    id                   BIGSERIAL PRIMARY KEY,
    user_id              BIGINT NOT NULL REFERENCES users(id),
    counsellor_id        BIGINT REFERENCES users(id),
    status               TEXT NOT NULL DEFAULT 'queued',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at           TIMESTAMPTZ,
    ended_at             TIMESTAMPTZ,
    last_user_activity   TIMESTAMPTZ,
    duration_minutes     INT NOT NULL DEFAULT 0,
    billed_amount        BIGINT NOT NULL DEFAULT 0,
    is_billed            BOOLEAN NOT NULL DEFAULT FALSE,
    billing_processed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_chats_user ON chats (user_id, status);
CREATE INDEX IF NOT EXISTS idx_chats_queued ON chats (created_at) WHERE status = 'queued';

CREATE TABLE IF NOT EXISTS messages (
    id                BIGSERIAL PRIMARY KEY,
    chat_id           BIGINT NOT NULL REFERENCES chats(id),
    sender_id         BIGINT NOT NULL REFERENCES users(id),
    text              TEXT NOT NULL,
    client_message_id TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_messages_sender_client
    ON messages (sender_id, client_message_id)
    WHERE client_message_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (chat_id, created_at, id);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	userRepo := pg.NewUserRepo(pool)
	walletRepo := pg.NewWalletRepo(pool)

	seedUsers := []struct {
		Username string
		Role     string
		Balance  int64
	}{
		{"demo-user", "user", 120},
		{"demo-counsellor", "counsellor", 0},
	}

	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	for _, s := range seedUsers {
		var id int64
		err := pool.QueryRow(ctx, `
INSERT INTO users (username, role) VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role
RETURNING id;`, s.Username, s.Role).Scan(&id)
		if err != nil {
			log.Fatalf("seed user %q: %v", s.Username, err)
		}
		if s.Balance > 0 {
			if err := walletRepo.Credit(ctx, nil, id, s.Balance); err != nil {
				log.Fatalf("fund wallet of %q: %v", s.Username, err)
			}
		}
		u, err := userRepo.FindByID(ctx, nil, id)
		if err != nil {
			log.Fatalf("read back user %q: %v", s.Username, err)
		}
		token, err := auth.Mint(u)
		if err != nil {
			log.Fatalf("mint token for %q: %v", s.Username, err)
		}
		fmt.Printf("seeded: %s (id=%d, role=%s, balance=%d)\n  token: %s\n", u.Username, u.ID, u.Role, s.Balance, token)
	}

	fmt.Println("✅ Seeding complete.")
}
