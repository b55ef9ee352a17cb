package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/rezozero/subscribeme/internal/pkg/logger"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fatal("connect", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fatal("ping", err)
	}
	logger.Info("connected to database")

	if listOnly {
		if err := listTables(db); err != nil {
			fatal("list tables", err)
		}
		return
	}

	files, err := migrationFiles(dir)
	if err != nil {
		fatal("read migrations dir", err)
	}

	var okCount, errCount int
	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			fatal("read migration", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		if err := apply(db, string(data)); err != nil {
			logger.Error("migration failed", "file", f, "error", err)
			errCount++
			continue
		}
		logger.Info("migration applied", "file", f)
		okCount++
	}
	logger.Info("migrations complete", "ok", okCount, "errors", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

// migrationFiles lists the .sql files in dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func apply(db *sql.DB, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(content); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func listTables(db *sql.DB) error {
	rows, err := db.Query(`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE 'subscription_%' ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
	return rows.Err()
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
