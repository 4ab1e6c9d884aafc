package db

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unitasklabs/unitask/internal/logging"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and ensures the schema is in place.
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		logging.Logger.Fatalf("unable to connect to database: %v", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		logging.Logger.Fatalf("unable to ping database: %v", err)
	}

	logging.Logger.Info("connected to Postgres")

	ensureProfilesTable()
	ensureUserStatsTable()
	ensureTasksTable()
	ensureMessagesTable()
	ensureEarningsTable()
	ensureReviewsTable()
	ensureReportsTable()
	ensureNotificationsTable()
}

// ensureProfilesTable creates profiles and keeps older deployments in sync
func ensureProfilesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS profiles (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student','admin')),
            field_of_study TEXT NULL,
            avatar_url TEXT NULL,
            verified BOOLEAN NOT NULL DEFAULT FALSE,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		logging.Logger.Errorf("failed to create profiles table: %v", err)
		return
	}

	// Columns added after early deployments
	_, _ = Conn.Exec(ctx, `ALTER TABLE profiles ADD COLUMN IF NOT EXISTS field_of_study TEXT`)
	_, _ = Conn.Exec(ctx, `ALTER TABLE profiles ADD COLUMN IF NOT EXISTS verified BOOLEAN DEFAULT FALSE`)
	_, _ = Conn.Exec(ctx, `UPDATE profiles SET verified = FALSE WHERE verified IS NULL`)
	_, _ = Conn.Exec(ctx, `ALTER TABLE profiles ADD COLUMN IF NOT EXISTS is_active BOOLEAN DEFAULT TRUE`)
	_, _ = Conn.Exec(ctx, `UPDATE profiles SET is_active = TRUE WHERE is_active IS NULL`)
}

// ensureUserStatsTable creates the per-user aggregate row storage
func ensureUserStatsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS user_stats (
            user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
            tasks_completed INTEGER NOT NULL DEFAULT 0,
            total_earnings BIGINT NOT NULL DEFAULT 0,
            rating_sum INTEGER NOT NULL DEFAULT 0,
            rating_count INTEGER NOT NULL DEFAULT 0
        )`)
	if err != nil {
		logging.Logger.Errorf("failed to create user_stats table: %v", err)
	}
}

func ensureTasksTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS tasks (
            id UUID PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            location TEXT NOT NULL DEFAULT '',
            price BIGINT NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'open',
            creator_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            assignee_id UUID NULL REFERENCES profiles(id) ON DELETE SET NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_tasks_creator ON tasks(creator_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
        CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
    `)
	if err != nil {
		logging.Logger.Errorf("failed to create tasks table: %v", err)
		return
	}

	// Keep the status constraint in sync with the statuses handlers use
	_, _ = Conn.Exec(ctx, `ALTER TABLE tasks DROP CONSTRAINT IF EXISTS tasks_status_check`)
	_, err = Conn.Exec(ctx, `
        ALTER TABLE tasks
        ADD CONSTRAINT tasks_status_check
        CHECK (status IN ('open', 'accepted', 'completed', 'cancelled'))`)
	if err != nil {
		logging.Logger.Errorf("failed to update tasks status constraint: %v", err)
	}
}

func ensureMessagesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            content TEXT NOT NULL DEFAULT '',
            image_url TEXT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_messages_task_created ON messages(task_id, created_at);
    `)
	if err != nil {
		logging.Logger.Errorf("failed to create messages table: %v", err)
	}
}

func ensureEarningsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS earnings_transactions (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
            amount BIGINT NOT NULL,
            type TEXT NOT NULL DEFAULT 'task_payment',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_earnings_user_created ON earnings_transactions(user_id, created_at);
    `)
	if err != nil {
		logging.Logger.Errorf("failed to create earnings_transactions table: %v", err)
	}
}

func ensureReviewsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS reviews (
            id UUID PRIMARY KEY,
            task_id UUID NOT NULL UNIQUE REFERENCES tasks(id) ON DELETE CASCADE,
            reviewer_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            reviewee_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
            comment TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_reviews_reviewee ON reviews(reviewee_id);
    `)
	if err != nil {
		logging.Logger.Errorf("failed to create reviews table: %v", err)
	}
}

func ensureReportsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS reports (
            id UUID PRIMARY KEY,
            task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
            reporter_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            reported_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            reason TEXT NOT NULL,
            details TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','resolved')),
            resolution TEXT NULL,
            resolved_by UUID NULL REFERENCES profiles(id) ON DELETE SET NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            resolved_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_reports_task ON reports(task_id);
        CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
    `)
	if err != nil {
		logging.Logger.Errorf("failed to create reports table: %v", err)
	}
}

// ensureNotificationsTable creates notifications table for in-app alerts
func ensureNotificationsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            reference UUID NULL,
            metadata JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
	if err != nil {
		logging.Logger.Errorf("failed to create notifications table: %v", err)
	}
}
