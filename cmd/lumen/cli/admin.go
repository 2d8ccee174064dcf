package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// AdminBootstrapper creates the first admin account.
type AdminBootstrapper interface {
	EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error)
}

// BootstrapOptions defines flags for `lumen bootstrap-admin`.
type BootstrapOptions struct {
	Email    string
	Password string
	Stdout   io.Writer
	Stderr   io.Writer
}

// BootstrapCommand creates an admin when the users table is empty. It exits 0
// when an admin was created or users already exist.
func BootstrapCommand(ctx context.Context, users AdminBootstrapper, opts BootstrapOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	email := strings.TrimSpace(opts.Email)
	if email == "" || opts.Password == "" {
		_, _ = fmt.Fprintln(stderr, "bootstrap-admin: --email and --password are required (or BOOTSTRAP_ADMIN_EMAIL/BOOTSTRAP_ADMIN_PASSWORD)")
		return 2
	}
	created, err := users.EnsureBootstrapAdmin(ctx, email, opts.Password)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "bootstrap-admin: %v\n", err)
		return 1
	}
	if created {
		_, _ = fmt.Fprintf(stdout, "admin %s created\n", strings.ToLower(email))
	} else {
		_, _ = fmt.Fprintln(stdout, "users already exist; nothing to do")
	}
	return 0
}
