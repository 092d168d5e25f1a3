// Command admin runs account operations directly against the database.
//
//	admin add-user -username alice -email alice@example.com [-group g] [-dryrun]
//	admin set-password -username alice
//	admin reset-password -username alice
//	admin delete-user -username alice
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/term"

	"github.com/jimiolaniyan/blockhub"
	"github.com/jimiolaniyan/blockhub/auth"
	"github.com/jimiolaniyan/blockhub/config"
	"github.com/jimiolaniyan/blockhub/mail"
)

// operator is the requestor for every command; it is the only admin known
// to the checker.
const operator = "admin-cli"

const (
	exitOK = iota
	exitError
	exitUsage
	exitConflict
	exitNotFound
	exitDenied
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin <add-user|set-password|reset-password|delete-user> [flags]")
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	log := cfg.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Error("could not connect to mongo")
		return exitError
	}
	defer client.Disconnect(context.Background())

	var notifier blockhub.Notifier = mail.NewLogger(log)
	if cfg.MailEnabled() {
		notifier = mail.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	}

	svc, err := newService(ctx, client.Database(cfg.MongoDatabase), notifier, log)
	if err != nil {
		log.WithError(err).Error("could not prepare database")
		return exitError
	}

	return exitCode(log, dispatch(ctx, svc, args[0], args[1:]))
}

// newService makes sure the unique username index exists before any write,
// since the database may not have seen the API server yet.
func newService(ctx context.Context, db *mongo.Database, notifier blockhub.Notifier, log logrus.FieldLogger) (blockhub.Service, error) {
	if err := blockhub.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return blockhub.NewService(
		blockhub.NewMongoUserRepository(db.Collection(blockhub.UsersCollection)),
		blockhub.NewMongoProjectRepository(db.Collection(blockhub.ProjectsCollection)),
		blockhub.NewSessions(nil),
		auth.NewAdminChecker(operator),
		notifier,
		blockhub.WithLogger(log),
	), nil
}

func dispatch(ctx context.Context, svc blockhub.Service, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	username := fs.String("username", "", "account username")

	switch cmd {
	case "add-user":
		email := fs.String("email", "", "account email")
		group := fs.String("group", "", "group id")
		dryRun := fs.Bool("dryrun", false, "check without writing")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		_, err = svc.Create(ctx, operator, blockhub.CreateUserRequest{
			Username: *username, Email: *email, GroupID: *group, Password: password, DryRun: *dryRun,
		})
		return err

	case "set-password":
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		password, err := readPassword("New password: ")
		if err != nil {
			return err
		}
		return svc.SetPassword(ctx, operator, blockhub.SetPasswordRequest{Username: *username, NewPassword: password})

	case "reset-password":
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return svc.ResetPassword(ctx, *username)

	case "delete-user":
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return svc.Delete(ctx, operator, *username)
	}

	return errUsage
}

var errUsage = errors.New("unknown command or flags")

func readPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("a terminal is required to read the password")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func exitCode(log logrus.FieldLogger, err error) int {
	if err == nil {
		return exitOK
	}

	log.WithError(err).Error("command failed")
	switch {
	case errors.Is(err, errUsage), errors.Is(err, blockhub.ErrMissingArguments), errors.Is(err, blockhub.ErrInvalidArgument):
		return exitUsage
	case errors.Is(err, blockhub.ErrRequest):
		return exitConflict
	case errors.Is(err, blockhub.ErrUserNotFound), errors.Is(err, blockhub.ErrIncorrectUserOrPassword):
		return exitNotFound
	case errors.Is(err, blockhub.ErrNotAuthorized):
		return exitDenied
	default:
		return exitError
	}
}
