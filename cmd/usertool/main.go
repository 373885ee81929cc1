// Command usertool bootstraps accounts and secrets for a userdesk deployment.
//
//	usertool create-user -email admin@example.com -password-stdin < pw.txt
//	usertool gen-secret
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/model"
	"github.com/userdesk/userdesk/internal/repository"
	"github.com/userdesk/userdesk/internal/service"
)

type output struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`
}

// userCreator is the slice of service.UserService create-user needs.
type userCreator interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*model.User, error)
}

// openCreator connects to the database. Replaced in tests.
var openCreator = func(ctx context.Context, databaseURL string) (userCreator, func(), error) {
	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return service.NewUserService(repo, nil, nil), repo.Close, nil
}

// promptPassword reads a password from the terminal without echo. Replaced in tests.
var promptPassword = func(prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch args[0] {
	case "create-user":
		return createUser(args[1:], stdin, stdout, stderr)
	case "gen-secret":
		return genSecret(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: usertool <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  create-user   insert an account directly into the database")
	fmt.Fprintln(w, "  gen-secret    print a random TOKEN_SECRET value")
}

func createUser(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		databaseURL   = fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email         = fs.String("email", "", "Account email")
		firstName     = fs.String("first-name", "Admin", "First name")
		lastName      = fs.String("last-name", "User", "Last name")
		ciNumber      = fs.String("ci-number", "", "Identity document number")
		passwordStdin = fs.Bool("password-stdin", false, "Read the password from the first line of stdin")
		prompt        = fs.Bool("password-prompt", false, "Prompt for the password on the terminal")
		format        = fs.String("format", "plain", "Output format: plain or json")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *databaseURL == "" {
		fmt.Fprintln(stderr, "DATABASE_URL is required")
		return 1
	}
	if *email == "" {
		fmt.Fprintln(stderr, "-email is required")
		return 1
	}

	password := os.Getenv("USERDESK_PASSWORD")
	switch {
	case *passwordStdin:
		line, err := readPassword(stdin)
		if err != nil {
			fmt.Fprintln(stderr, "read password:", err)
			return 1
		}
		password = line
	case *prompt:
		typed, err := promptPassword(stderr)
		if err != nil {
			fmt.Fprintln(stderr, "read password:", err)
			return 1
		}
		password = typed
	}
	if password == "" {
		fmt.Fprintln(stderr, "set USERDESK_PASSWORD or pass -password-stdin or -password-prompt")
		return 1
	}

	outFormat := strings.ToLower(*format)
	if outFormat != "plain" && outFormat != "json" {
		fmt.Fprintln(stderr, "invalid format; use plain or json")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	creator, closeFn, err := openCreator(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(stderr, "connect database: failed")
		return 1
	}
	defer closeFn()

	user, err := creator.CreateUser(ctx, service.CreateUserInput{
		FirstName: *firstName,
		LastName:  *lastName,
		CINumber:  *ciNumber,
		Email:     *email,
		Password:  password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrInvalidInput):
			fmt.Fprintln(stderr, "create user:", err)
		default:
			fmt.Fprintln(stderr, "create user: database unavailable")
		}
		return 1
	}

	out := output{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Active:    user.Active,
	}

	if outFormat == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return 0
	}
	fmt.Fprintf(stdout, "created user %d <%s>\n", out.ID, out.Email)
	return 0
}

func genSecret(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gen-secret", flag.ContinueOnError)
	fs.SetOutput(stderr)
	size := fs.Int("bytes", auth.MinSecretBytes, "Number of random bytes")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	secret, err := auth.GenerateSecret(*size)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	fmt.Fprintln(stdout, secret)
	return 0
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
