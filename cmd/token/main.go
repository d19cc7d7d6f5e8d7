// Command token mints a bearer token for local testing of the API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"thesis-service/pkg/config"
	"thesis-service/pkg/jwtutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := flags.StringP("user", "u", "", "student id (e.g. s10001), teacher id or admin name")
	role := flags.StringP("role", "r", "student", "student, teacher or admin")
	email := flags.StringP("email", "e", "", "e-mail claim")
	hours := flags.Int("hours", 0, "token lifetime in hours (default JWT_EXPIRATION_HOURS)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *user == "" {
		return fmt.Errorf("--user is required")
	}
	switch *role {
	case "student", "teacher", "admin":
	default:
		return fmt.Errorf("unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *hours > 0 {
		cfg.JWT.ExpirationHours = *hours
	}

	token, err := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	}).GenerateToken(*user, *email, *role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
