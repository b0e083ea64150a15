package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/pinigine/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransactionsTable()
	migrateRecurringTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		auth_provider TEXT DEFAULT 'local',
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		password_reset_token TEXT,
		password_reset_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT NOT NULL,
		category TEXT,
		date TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		source_recurring_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date);

	CREATE TABLE IF NOT EXISTS recurring_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT NOT NULL,
		category TEXT,
		frequency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		currency TEXT NOT NULL DEFAULT 'EUR',
		last_materialized TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS budgets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		amount REAL NOT NULL,
		period TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		target_amount REAL NOT NULL,
		current_amount REAL NOT NULL DEFAULT 0,
		target_date TEXT NOT NULL,
		description TEXT,
		currency TEXT NOT NULL DEFAULT 'EUR',
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS debts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		person TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT,
		date TEXT NOT NULL,
		paid_date TEXT,
		currency TEXT NOT NULL DEFAULT 'EUR',
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS savings_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		current_amount REAL NOT NULL DEFAULT 0,
		target_amount REAL,
		color TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS savings_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		savings_account_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		date TEXT NOT NULL,
		description TEXT,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(savings_account_id) REFERENCES savings_accounts(id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTransactionsTable adds columns introduced after the first release
// (currency, source_recurring_id) to databases created before them.
func migrateTransactionsTable() {
	columnExists, ok := tableColumns("transactions")
	if !ok {
		return
	}

	if _, exists := columnExists["currency"]; !exists {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN currency TEXT NOT NULL DEFAULT 'EUR'"); err != nil {
			logMigrationError("currency", "transactions", err)
		} else {
			logMigrationDone("currency", "transactions")
		}
	}
	if _, exists := columnExists["source_recurring_id"]; !exists {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN source_recurring_id INTEGER"); err != nil {
			logMigrationError("source_recurring_id", "transactions", err)
		} else {
			logMigrationDone("source_recurring_id", "transactions")
		}
	}
}

// migrateRecurringTable adds the last_materialized watermark column to
// databases created before progress tracking moved server-side.
func migrateRecurringTable() {
	columnExists, ok := tableColumns("recurring_transactions")
	if !ok {
		return
	}

	if _, exists := columnExists["last_materialized"]; !exists {
		if _, err := DB.Exec("ALTER TABLE recurring_transactions ADD COLUMN last_materialized TEXT"); err != nil {
			logMigrationError("last_materialized", "recurring_transactions", err)
		} else {
			logMigrationDone("last_materialized", "recurring_transactions")
		}
	}
}

// tableColumns returns the column set of an existing table, or ok=false when
// the table does not exist yet (it will be created with the full schema).
func tableColumns(table string) (map[string]bool, bool) {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false
		}
		if logger.L != nil {
			logger.L.Error("Error checking for table", "table", table, "error", err)
		} else {
			stdlog.Printf("Error checking for table %s: %v", table, err)
		}
		return nil, false
	}

	rows, err := DB.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema", "table", table, "error", err)
		} else {
			stdlog.Printf("Error querying table schema for %s: %v", table, err)
		}
		return nil, false
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "table", table, "error", err)
			} else {
				stdlog.Printf("Error scanning column info for %s: %v", table, err)
			}
			return nil, false
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "table", table, "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for %s: %v", table, err)
		}
		return nil, false
	}
	return columnExists, true
}

func logMigrationError(column, table string, err error) {
	if logger.L != nil {
		logger.L.Error("Error adding column", "column", column, "table", table, "error", err)
	} else {
		stdlog.Printf("Error adding %s column to %s: %v", column, table, err)
	}
}

func logMigrationDone(column, table string) {
	if logger.L != nil {
		logger.L.Info("Added column", "column", column, "table", table)
	} else {
		stdlog.Printf("Added %s column to %s table", column, table)
	}
}
