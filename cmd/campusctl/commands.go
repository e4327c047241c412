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

	"github.com/target/campus-portal/internal/coordinator"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/rolerouter"
	"golang.org/x/sync/errgroup"
)

func runSignIn(a *app, args []string) error {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "Account email (required)")
	password := fs.String("password", "", "Account password")
	fromStdin := fs.Bool("password-stdin", false, "Read the password from the first line of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}
	if *fromStdin {
		pw, err := readLine(os.Stdin)
		if err != nil {
			return err
		}
		*password = pw
	}

	if err := a.coord.SignIn(a.ctx, *email, *password); err != nil {
		return err
	}
	st := a.coord.State()
	if err := writef(a.out, "%s\n", describeState(st)); err != nil {
		return err
	}
	if landing := rolerouter.Landing(rolerouter.Resolve(st)); landing != "" {
		return writef(a.out, "landing: %s\n", landing)
	}
	return nil
}

func runSignOut(a *app, _ []string) error {
	if !a.coord.State().SignedIn() {
		return writef(a.out, "already signed out\n")
	}
	if err := a.coord.SignOut(a.ctx); err != nil {
		return err
	}
	return writef(a.out, "signed out\n")
}

func runWhoAmI(a *app, _ []string) error {
	return writef(a.out, "%s\n", describeState(a.coord.State()))
}

func runOpen(a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <view>")
	}
	path := normalizeView(args[0])

	router := rolerouter.New(rolerouter.Options{Start: path, Logger: a.logger})
	d, _ := router.Apply(a.coord.State())
	return writef(a.out, "%s\n", describeDecision(path, d))
}

type profileFlags struct {
	first, last, phone, avatar string
}

// parseProfilePatch returns a patch holding only the flags that were set.
func parseProfilePatch(args []string) (domainauth.ProfilePatch, error) {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var f profileFlags
	fs.StringVar(&f.first, "first", "", "First name")
	fs.StringVar(&f.last, "last", "", "Last name")
	fs.StringVar(&f.phone, "phone", "", "Phone number")
	fs.StringVar(&f.avatar, "avatar", "", "Avatar URL")
	if err := fs.Parse(args); err != nil {
		return domainauth.ProfilePatch{}, err
	}

	var patch domainauth.ProfilePatch
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "first":
			patch.FirstName = &f.first
		case "last":
			patch.LastName = &f.last
		case "phone":
			patch.Phone = &f.phone
		case "avatar":
			patch.AvatarURL = &f.avatar
		}
	})
	if patch.IsEmpty() {
		return domainauth.ProfilePatch{}, errors.New("nothing to update; set at least one of -first, -last, -phone, -avatar")
	}
	return patch, nil
}

func runProfile(a *app, args []string) error {
	patch, err := parseProfilePatch(args)
	if err != nil {
		return err
	}
	if err := a.coord.UpdateProfile(a.ctx, patch); err != nil {
		return err
	}
	return writef(a.out, "%s\n", describeState(a.coord.State()))
}

func runWatch(a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	from := fs.String("from", rolerouter.GeneralPath, "View the router starts on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	lines := make(chan string, 16)
	router := rolerouter.New(rolerouter.Options{
		Start:  normalizeView(*from),
		Logger: a.logger,
		Navigator: rolerouter.NavigatorFunc(func(p string) {
			select {
			case lines <- "navigate: " + p:
			case <-ctx.Done():
			}
		}),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(router.Run(gctx, a.coord.Subscribe(gctx)))
	})
	g.Go(func() error {
		sub := a.coord.Subscribe(gctx)
		for {
			select {
			case <-gctx.Done():
				return nil
			case st, ok := <-sub.C():
				if !ok {
					return nil
				}
				if err := writef(a.out, "[v%d] %s\n", st.Version, describeState(st)); err != nil {
					return err
				}
			case line := <-lines:
				if err := writef(a.out, "%s\n", line); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// normalizeView accepts "admin" as well as "/admin".
func normalizeView(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}

func describeState(st domainauth.AuthState) string {
	switch {
	case st.Loading:
		return "loading"
	case !st.SignedIn():
		if st.Err != nil {
			return "signed out (" + coordinator.UserMessage(st.Err) + ")"
		}
		return "signed out"
	case st.Profile == nil:
		msg := fmt.Sprintf("signed in as %s (profile unavailable)", st.Session.Email)
		if st.Err != nil {
			msg += ": " + coordinator.UserMessage(st.Err)
		}
		return msg
	default:
		p := st.Profile
		return fmt.Sprintf("signed in as %s <%s> role=%s status=%s", p.DisplayName(), p.Email, p.Role, p.Status)
	}
}

func describeDecision(path string, d rolerouter.Decision) string {
	switch d.Action {
	case rolerouter.Redirect:
		return fmt.Sprintf("redirect %s -> %s", path, d.Target)
	case rolerouter.Wait:
		return "wait " + path
	default:
		return "render " + path
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
