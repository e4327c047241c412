package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/target/campus-portal/internal/adapters/localauth"
	"github.com/target/campus-portal/internal/data"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	"github.com/target/campus-portal/internal/service"
)

type createAccountOptions struct {
	Request       model.CreateAccountRequest
	PasswordStdin bool
}

type resetPasswordOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
}

type setRoleOptions struct {
	Email string
	Role  domainauth.Role
}

type setStatusOptions struct {
	Email  string
	Status domainauth.Status
}

type listProfilesOptions struct {
	Filter model.ProfileListOptions
}

func parseCreateAccountFlags(args []string) (createAccountOptions, error) {
	fs := flag.NewFlagSet("create-account", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts createAccountOptions
		role string
	)
	fs.StringVar(&opts.Request.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Request.Password, "password", "", "Account password (at least 8 characters)")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from the first line of stdin")
	fs.StringVar(&opts.Request.FirstName, "first", "", "First name")
	fs.StringVar(&opts.Request.LastName, "last", "", "Last name")
	fs.StringVar(&role, "role", string(domainauth.RoleStudent), "Role: admin, instructor, or student")
	if err := fs.Parse(args); err != nil {
		return createAccountOptions{}, err
	}

	if strings.TrimSpace(opts.Request.Email) == "" {
		return createAccountOptions{}, errors.New("--email is required")
	}
	if opts.PasswordStdin && opts.Request.Password != "" {
		return createAccountOptions{}, errors.New("--password and --password-stdin are mutually exclusive")
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return createAccountOptions{}, err
	}
	opts.Request.Role = parsed
	return opts, nil
}

func parseResetPasswordFlags(args []string) (resetPasswordOptions, error) {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts resetPasswordOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "New password")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from the first line of stdin")
	if err := fs.Parse(args); err != nil {
		return resetPasswordOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return resetPasswordOptions{}, errors.New("--email is required")
	}
	if opts.PasswordStdin && opts.Password != "" {
		return resetPasswordOptions{}, errors.New("--password and --password-stdin are mutually exclusive")
	}
	return opts, nil
}

func parseSetRoleFlags(args []string) (setRoleOptions, error) {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts setRoleOptions
		role string
	)
	fs.StringVar(&opts.Email, "email", "", "Profile email (required)")
	fs.StringVar(&role, "role", "", "Role: admin, instructor, or student (required)")
	if err := fs.Parse(args); err != nil {
		return setRoleOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return setRoleOptions{}, errors.New("--email is required")
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return setRoleOptions{}, err
	}
	opts.Role = parsed
	return opts, nil
}

func parseSetStatusFlags(args []string) (setStatusOptions, error) {
	fs := flag.NewFlagSet("set-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts   setStatusOptions
		status string
	)
	fs.StringVar(&opts.Email, "email", "", "Profile email (required)")
	fs.StringVar(&status, "status", "", "Status: active, inactive, or suspended (required)")
	if err := fs.Parse(args); err != nil {
		return setStatusOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return setStatusOptions{}, errors.New("--email is required")
	}
	parsed, err := domainauth.ParseStatus(status)
	if err != nil {
		return setStatusOptions{}, err
	}
	opts.Status = parsed
	return opts, nil
}

func parseListProfilesFlags(args []string) (listProfilesOptions, error) {
	fs := flag.NewFlagSet("list-profiles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts         listProfilesOptions
		role, status string
	)
	fs.StringVar(&role, "role", "", "Only list this role")
	fs.StringVar(&status, "status", "", "Only list this status")
	fs.StringVar(&opts.Filter.Search, "search", "", "Match name or email")
	fs.IntVar(&opts.Filter.Limit, "limit", 50, "Maximum rows to print (max 200)")
	fs.IntVar(&opts.Filter.Offset, "offset", 0, "Rows to skip")
	if err := fs.Parse(args); err != nil {
		return listProfilesOptions{}, err
	}
	if role != "" {
		parsed, err := domainauth.ParseRole(role)
		if err != nil {
			return listProfilesOptions{}, err
		}
		opts.Filter.Role = parsed
	}
	if status != "" {
		parsed, err := domainauth.ParseStatus(status)
		if err != nil {
			return listProfilesOptions{}, err
		}
		opts.Filter.Status = parsed
	}
	opts.Filter.Normalize()
	return opts, nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}

func newAccountService(cmdCtx *commandContext, db *sql.DB) (*service.AccountService, error) {
	return service.NewAccountService(service.AccountServiceOptions{
		Accounts: data.NewAccountRepo(db),
		Profiles: data.NewProfileRepo(db),
		Hasher:   localauth.NewHasher(cmdCtx.Config.Auth.PasswordPepper),
		Logger:   cmdCtx.Logger,
	})
}

func runCreateAccount(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateAccountFlags(args)
	if err != nil {
		return err
	}
	if opts.PasswordStdin {
		if opts.Request.Password, err = readPassword(os.Stdin); err != nil {
			return err
		}
	}

	return withDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		svc, err := newAccountService(cmdCtx, db)
		if err != nil {
			return err
		}
		profile, err := svc.Create(ctx, opts.Request)
		if err != nil {
			return err
		}
		return writef(os.Stdout, "created %s (%s) as %s\n", profile.Email, profile.UserID, profile.Role)
	})
}

func runResetPassword(cmdCtx *commandContext, args []string) error {
	opts, err := parseResetPasswordFlags(args)
	if err != nil {
		return err
	}
	if opts.PasswordStdin {
		if opts.Password, err = readPassword(os.Stdin); err != nil {
			return err
		}
	}

	return withDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		svc, err := newAccountService(cmdCtx, db)
		if err != nil {
			return err
		}
		if err := svc.ResetPassword(ctx, opts.Email, opts.Password); err != nil {
			return err
		}
		return writef(os.Stdout, "password updated for %s\n", model.NormalizeEmail(opts.Email))
	})
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetRoleFlags(args)
	if err != nil {
		return err
	}
	return updateProfileByEmail(cmdCtx, opts.Email, domainauth.ProfilePatch{Role: &opts.Role})
}

func runSetStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetStatusFlags(args)
	if err != nil {
		return err
	}
	return updateProfileByEmail(cmdCtx, opts.Email, domainauth.ProfilePatch{Status: &opts.Status})
}

// updateProfileByEmail applies a privileged patch outside the HTTP surface, then
// notifies the subject's live clients so their role is re-read.
func updateProfileByEmail(cmdCtx *commandContext, email string, patch domainauth.ProfilePatch) error {
	return withDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewProfileRepo(db)
		current, err := repo.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, domainauth.ErrProfileNotFound) {
				return fmt.Errorf("no profile for %s", model.NormalizeEmail(email))
			}
			return err
		}
		updated, err := repo.Update(ctx, current.UserID, patch)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}

		publishChange(ctx, cmdCtx, domainauth.SessionChange{Event: domainauth.EventUserUpdated, UserID: updated.UserID})
		return writef(os.Stdout, "%s: role=%s status=%s\n", updated.Email, updated.Role, updated.Status)
	})
}

func runListProfiles(cmdCtx *commandContext, args []string) error {
	opts, err := parseListProfilesFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		profiles, err := data.NewProfileRepo(db).List(ctx, opts.Filter)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		return printProfiles(os.Stdout, profiles)
	})
}

func printProfiles(w io.Writer, profiles []*domainauth.Profile) error {
	if len(profiles) == 0 {
		return writeln(w, "(no profiles found)")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "EMAIL\tNAME\tROLE\tSTATUS\tREGISTERED\n"); err != nil {
		return err
	}
	for _, p := range profiles {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		if name == "" {
			name = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Email, name, p.Role, p.Status, p.RegisteredAt.UTC().Format("2006-01-02")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
