package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"coursechat/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your coursechat installation",
		Long: `Verifies that coursechat's configuration, provider keys, Qdrant
connection, and documents folder are correctly set up. Reports pass/fail
for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("coursechat doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'coursechat init' to create a default configuration.\n")
				return fmt.Errorf("1 check(s) failed")
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n1 passed, 1 failed\n")
				return fmt.Errorf("1 check(s) failed")
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Active provider has an API key
			name := cfg.General.Provider
			if p, ok := cfg.Providers[name]; ok && p.Enabled {
				if p.APIKey == "" && p.APIBase == "" {
					printWarn("Provider: "+name, "enabled but no API key configured")
					warned++
				} else {
					printPass("Provider: "+name, "configured, model "+p.Model)
					passed++
				}
			} else {
				printFail("Provider: "+name, "not enabled in providers section")
				failed++
			}

			// 4. Embedding key
			if cfg.Embedding.APIKey == "" && cfg.Embedding.APIBase == "" {
				printWarn("Embeddings", "no API key configured (set OPENAI_API_KEY)")
				warned++
			} else {
				printPass("Embeddings", cfg.Embedding.Model)
				passed++
			}

			// 5. Qdrant reachable
			qdrantAddr := fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)
			if conn, err := net.DialTimeout("tcp", qdrantAddr, 3*time.Second); err != nil {
				printFail("Qdrant", fmt.Sprintf("cannot reach %s: %v", qdrantAddr, err))
				failed++
			} else {
				conn.Close()
				printPass("Qdrant", qdrantAddr)
				passed++
			}

			// 6. Docs folder
			if info, err := os.Stat(cfg.Docs.Path); err != nil {
				printWarn("Docs folder", fmt.Sprintf("not found: %s", cfg.Docs.Path))
				warned++
			} else if !info.IsDir() {
				printFail("Docs folder", fmt.Sprintf("not a directory: %s", cfg.Docs.Path))
				failed++
			} else {
				printPass("Docs folder", cfg.Docs.Path)
				passed++
			}

			// 7. Query log writable
			if cfg.QueryLog.Enabled {
				if err := checkDatabase(cfg.QueryLog.DBPath); err != nil {
					printFail("Query log", err.Error())
					failed++
				} else {
					printPass("Query log", cfg.QueryLog.DBPath)
					passed++
				}
			}

			// 8. Server port available
			if err := checkPort(cfg.Server.Port); err != nil {
				printWarn("Server port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Server port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			// 9. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running coursechat.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ncoursechat should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! coursechat is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
