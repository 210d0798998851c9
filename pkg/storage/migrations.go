package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meridiancrm/meridian/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					first_name VARCHAR(100) NOT NULL,
					last_name VARCHAR(100) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					mobile VARCHAR(20) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					role VARCHAR(50) NOT NULL DEFAULT 'Sales Executive',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					last_login TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_role ON users(role);
			`,
		},
		{
			Version:     2,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					kind VARCHAR(10) NOT NULL,
					expires_at TIMESTAMP NOT NULL,
					revoked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sessions_token_hash ON sessions(token_hash);
				CREATE INDEX idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
		{
			Version:     3,
			Description: "Create campaigns table",
			SQL: `
				CREATE TABLE IF NOT EXISTS campaigns (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					type VARCHAR(50) NOT NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'Planned',
					start_date TIMESTAMP,
					end_date TIMESTAMP,
					budget NUMERIC(14,2) NOT NULL DEFAULT 0,
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					leads_generated INT NOT NULL DEFAULT 0,
					deals_won INT NOT NULL DEFAULT 0,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_campaigns_status ON campaigns(status);
			`,
		},
		{
			Version:     4,
			Description: "Create accounts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL DEFAULT '',
					phone VARCHAR(20) NOT NULL DEFAULT '',
					website VARCHAR(255) NOT NULL DEFAULT '',
					industry VARCHAR(100) NOT NULL DEFAULT '',
					type VARCHAR(50) NOT NULL DEFAULT 'Customer',
					notes TEXT NOT NULL DEFAULT '',
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_accounts_assigned_to ON accounts(assigned_to);
				CREATE INDEX idx_accounts_type ON accounts(type);
			`,
		},
		{
			Version:     5,
			Description: "Create contacts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contacts (
					id BIGSERIAL PRIMARY KEY,
					first_name VARCHAR(100) NOT NULL,
					last_name VARCHAR(100) NOT NULL,
					email VARCHAR(255) NOT NULL DEFAULT '',
					mobile VARCHAR(20) NOT NULL DEFAULT '',
					job_title VARCHAR(100) NOT NULL DEFAULT '',
					account_id BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
					notes TEXT NOT NULL DEFAULT '',
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_contacts_assigned_to ON contacts(assigned_to);
				CREATE INDEX idx_contacts_account_id ON contacts(account_id);
			`,
		},
		{
			Version:     6,
			Description: "Create deals table",
			SQL: `
				CREATE TABLE IF NOT EXISTS deals (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					account_id BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
					contact_id BIGINT REFERENCES contacts(id) ON DELETE SET NULL,
					stage VARCHAR(50) NOT NULL DEFAULT 'Prospecting',
					value NUMERIC(14,2) NOT NULL DEFAULT 0,
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					expected_close_date TIMESTAMP,
					closed_at TIMESTAMP,
					probability INT NOT NULL DEFAULT 0,
					source_id BIGINT REFERENCES campaigns(id) ON DELETE SET NULL,
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_deals_assigned_to ON deals(assigned_to);
				CREATE INDEX idx_deals_stage ON deals(stage);
				CREATE INDEX idx_deals_account_id ON deals(account_id);
			`,
		},
		{
			Version:     7,
			Description: "Create leads table",
			SQL: `
				CREATE TABLE IF NOT EXISTS leads (
					id BIGSERIAL PRIMARY KEY,
					first_name VARCHAR(100) NOT NULL,
					last_name VARCHAR(100) NOT NULL,
					email VARCHAR(255) NOT NULL DEFAULT '',
					mobile VARCHAR(20) NOT NULL DEFAULT '',
					company VARCHAR(255) NOT NULL DEFAULT '',
					job_title VARCHAR(100) NOT NULL DEFAULT '',
					status VARCHAR(50) NOT NULL DEFAULT 'New',
					source_id BIGINT REFERENCES campaigns(id) ON DELETE SET NULL,
					value NUMERIC(14,2) NOT NULL DEFAULT 0,
					notes TEXT NOT NULL DEFAULT '',
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					converted_contact_id BIGINT REFERENCES contacts(id) ON DELETE SET NULL,
					converted_account_id BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
					converted_deal_id BIGINT REFERENCES deals(id) ON DELETE SET NULL,
					converted_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_leads_assigned_to ON leads(assigned_to);
				CREATE INDEX idx_leads_status ON leads(status);
			`,
		},
		{
			Version:     8,
			Description: "Create tasks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					type VARCHAR(50) NOT NULL DEFAULT 'Other',
					priority VARCHAR(20) NOT NULL DEFAULT 'Medium',
					status VARCHAR(50) NOT NULL DEFAULT 'Pending',
					due_date TIMESTAMP,
					related_kind VARCHAR(50),
					related_id BIGINT,
					completed_at TIMESTAMP,
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_tasks_assigned_to ON tasks(assigned_to);
				CREATE INDEX idx_tasks_status ON tasks(status);
				CREATE INDEX idx_tasks_due_date ON tasks(due_date);
			`,
		},
		{
			Version:     9,
			Description: "Create communications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS communications (
					id BIGSERIAL PRIMARY KEY,
					type VARCHAR(50) NOT NULL,
					subject VARCHAR(255) NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					related_kind VARCHAR(50),
					related_id BIGINT,
					direction VARCHAR(20) NOT NULL DEFAULT 'Outbound',
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_communications_related ON communications(related_kind, related_id);
			`,
		},
		{
			Version:     10,
			Description: "Create notifications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					type VARCHAR(50) NOT NULL,
					title VARCHAR(255) NOT NULL,
					message TEXT NOT NULL,
					is_read BOOLEAN NOT NULL DEFAULT FALSE,
					read_at TIMESTAMP,
					related_kind VARCHAR(50),
					related_id BIGINT,
					priority VARCHAR(20) NOT NULL DEFAULT 'Medium',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_notifications_user_id ON notifications(user_id);
				CREATE INDEX idx_notifications_is_read ON notifications(user_id, is_read);
				CREATE INDEX idx_notifications_created_at ON notifications(created_at);
			`,
		},
		{
			Version:     11,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					action VARCHAR(20) NOT NULL,
					entity_type VARCHAR(50) NOT NULL,
					entity_id BIGINT,
					details JSONB,
					ip_address VARCHAR(45),
					user_agent TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_logs_user_id ON audit_logs(user_id);
				CREATE INDEX idx_audit_logs_action ON audit_logs(action);
				CREATE INDEX idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
				CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
			`,
		},
		{
			Version:     12,
			Description: "Create organization table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization (
					id BIGSERIAL PRIMARY KEY,
					company_name VARCHAR(255) NOT NULL,
					company_email VARCHAR(255) NOT NULL,
					company_phone VARCHAR(20) NOT NULL DEFAULT '',
					address JSONB NOT NULL DEFAULT '{}',
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
					working_hours JSONB NOT NULL DEFAULT '{}',
					holidays JSONB NOT NULL DEFAULT '[]',
					logo VARCHAR(255) NOT NULL DEFAULT '',
					website VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.Infof("Running migration %d: %s", migration.Version, migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
