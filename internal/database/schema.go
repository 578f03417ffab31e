package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables in dependency order.  Document-shaped fields
// (feature lists, websites, message contents, file metadata) live in
// JSON columns.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) PRIMARY KEY,
		nicename VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		balance DECIMAL(12,2) NOT NULL DEFAULT 0,
		email_verified TINYINT(1) NOT NULL DEFAULT 0,
		verify_token_hash CHAR(64) NULL,
		verify_expires_at DATETIME NULL,
		reset_token_hash CHAR(64) NULL,
		reset_expires_at DATETIME NULL,
		last_login_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		user_name VARCHAR(120) NOT NULL,
		user_email VARCHAR(255) NOT NULL,
		item_name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		type VARCHAR(64) NOT NULL,
		features JSON NULL,
		article_text MEDIUMTEXT NULL,
		file JSON NULL,
		message TEXT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		completion_message TEXT NULL,
		completion_link VARCHAR(1024) NULL,
		created_at DATETIME NOT NULL,
		submitted_at DATETIME NULL,
		completed_at DATETIME NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_orders_user (user_id),
		KEY idx_orders_email (user_email),
		KEY idx_orders_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS site_submissions (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NULL,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		websites JSON NOT NULL,
		is_owner TINYINT(1) NOT NULL DEFAULT 0,
		monthly_traffic VARCHAR(64) NULL,
		domain_authority INT NOT NULL DEFAULT 0,
		domain_rating INT NOT NULL DEFAULT 0,
		category VARCHAR(120) NULL,
		notes TEXT NULL,
		file_path VARCHAR(512) NULL,
		file_name VARCHAR(255) NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		submitted_at DATETIME NOT NULL,
		reviewed_at DATETIME NULL,
		reviewed_by CHAR(36) NULL,
		admin_notes TEXT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_submissions_status (status),
		KEY idx_submissions_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id CHAR(36) PRIMARY KEY,
		thread_id VARCHAR(64) NOT NULL,
		user_id CHAR(36) NULL,
		user_email VARCHAR(255) NOT NULL,
		subject VARCHAR(255) NULL,
		type VARCHAR(32) NOT NULL DEFAULT 'support',
		approved TINYINT NOT NULL DEFAULT 0,
		contents JSON NOT NULL,
		date DATETIME(3) NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_messages_thread (thread_id),
		KEY idx_messages_user (user_id),
		KEY idx_messages_email (user_email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS services (
		id CHAR(36) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		icon VARCHAR(255) NULL,
		sort_order INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS service_packages (
		id CHAR(36) PRIMARY KEY,
		service_id CHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		features JSON NOT NULL,
		popular TINYINT(1) NOT NULL DEFAULT 0,
		sort_order INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_packages_service (service_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.  Existing tables are left untouched.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
