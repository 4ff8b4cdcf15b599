// Package vaultctl implements the administrative command line for the vault:
// bootstrap accounts, run migrations and generate deployment secrets.
package vaultctl

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passvault/internal/server/services"
	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const usage = `usage: vaultctl [-d dsn] [-env-file path] <command>

commands:
  create-user   create an account (prompts for the password)
  migrate       apply database migrations
  gen-keys      print fresh ENCRYPTION_KEY, ENCRYPTION_IV and SECRET_KEY values
`

var ErrUsage = errors.New("invalid usage")

type UserCreator interface {
	CreateUser(ctx context.Context, in services.NewUser) (string, error)
}

type App struct {
	reader *bufio.Reader
	out    io.Writer
	dsn    string
	log    logging.Logger
}

// test seams
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newUserCreator = func(db *sql.DB, log logging.Logger) UserCreator {
		hasher := cryptox.NewPasswordHasher(cryptox.DefaultBcryptCost, 1)
		// only CreateUser is used, so no token manager is needed
		return services.NewUserService(dbx.NewSQLTransactor(db, nil), repomanager.NewPostgresRepositoryManager(), hasher, nil, log)
	}
)

// Run parses args (without the program name) and executes one command.
func Run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	fs.SetOutput(out)
	dsn := fs.String("d", "", "database DSN (default $DATABASE_DSN)")
	envFile := fs.String("env-file", "", "path to a .env file")
	fs.Usage = func() { fmt.Fprint(out, usage) }

	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return ErrUsage
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("loading %s: %w", *envFile, err)
		}
	}
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_DSN")
	}

	a := &App{
		reader: bufio.NewReader(in),
		out:    out,
		dsn:    *dsn,
		log:    logging.NewJSONLogger(os.Stderr, "warn"),
	}

	switch fs.Arg(0) {
	case "create-user":
		return a.withDB(ctx, func(db *sql.DB) error {
			return a.createUser(ctx, newUserCreator(db, a.log))
		})
	case "migrate":
		return a.withDB(ctx, func(*sql.DB) error {
			fmt.Fprintln(a.out, "migrations applied")
			return nil
		})
	case "gen-keys":
		return a.genKeys()
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, fs.Arg(0))
	}
}

// withDB opens the database, brings the schema up to date and runs fn.
func (a *App) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	if a.dsn == "" {
		return fmt.Errorf("%w: database DSN is not set", ErrUsage)
	}

	db, err := openDB(a.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	return fn(db)
}

func (a *App) createUser(ctx context.Context, users UserCreator) error {
	var in services.NewUser
	var err error

	if in.Username, err = GetSimpleText(a.reader, "Username", a.out); err != nil {
		return err
	}
	if in.FirstName, err = GetSimpleText(a.reader, "First name", a.out); err != nil {
		return err
	}
	if in.LastName, err = GetSimpleText(a.reader, "Last name", a.out); err != nil {
		return err
	}
	if in.Password, err = GetPassword("Password", a.out); err != nil {
		return err
	}
	confirm, err := GetPassword("Confirm password", a.out)
	if err != nil {
		return err
	}
	if in.Password != confirm {
		return common.ErrPasswordMismatch
	}

	username, err := users.CreateUser(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "user %s created\n", username)
	return nil
}

// genKeys prints the secrets in .env format.
func (a *App) genKeys() error {
	for _, k := range []struct {
		name string
		size int
	}{
		{"ENCRYPTION_KEY", cryptox.KeySize},
		{"ENCRYPTION_IV", cryptox.IVSize},
		{"SECRET_KEY", 32},
	} {
		v, err := common.MakeRandHexString(k.size)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s=%s\n", k.name, v)
	}
	return nil
}
