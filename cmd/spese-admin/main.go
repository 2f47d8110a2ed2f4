// Command spese-admin manages users and the schema outside the HTTP API.
//
//	spese-admin adduser -user alice [-password secret] [-db ./data/spese.db]
//	spese-admin migrate [-db ./data/spese.db]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"spese-api/internal/auth"
	"spese-api/internal/cli"
	"spese-api/internal/config"
	"spese-api/internal/core"
	"spese-api/internal/storage"
)

const usage = `Usage: spese-admin <command> [flags]

Commands:
  adduser   create a user account
  migrate   apply pending schema migrations
`

func main() {
	cli.LoadEnvFile()

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}

	cfg := config.Load()
	switch args[0] {
	case "adduser":
		return runAddUser(cfg, args[1:], stdin, stdout, stderr)
	case "migrate":
		return runMigrate(cfg, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return flag.ErrHelp
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runAddUser(cfg *config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", cfg.SQLiteDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: spese-admin adduser -user <username> [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return errors.New("missing required flags: user")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	creds := core.Credentials{Username: *username, Password: password}
	if err := creds.Validate(); err != nil {
		return err
	}

	cfg.SQLiteDBPath = *dbPath
	if err := cfg.ValidateForAdmin(); err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := strings.TrimSpace(creds.Username)
	if _, err := repo.GetUserByUsername(ctx, name); err == nil {
		return fmt.Errorf("user %s already exists", name)
	} else if !core.IsNotFound(err) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := auth.NewHasher(cfg.BcryptCost).Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := repo.CreateUser(ctx, name, hash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
	return nil
}

func runMigrate(cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", cfg.SQLiteDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.SQLiteDBPath = *dbPath
	if err := cfg.ValidateForAdmin(); err != nil {
		return err
	}

	// Opening the repository creates the file and applies pending migrations.
	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	repo.Close()

	version, dirty, err := storage.MigrationVersion(*dbPath)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	fmt.Fprintf(stdout, "Schema at version %d\n", version)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
