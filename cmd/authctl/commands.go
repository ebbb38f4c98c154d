package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/users"
	pkgerrors "github.com/pkg/errors"
)

var (
	errUsage       = errors.New("usage")
	errNotLoggedIn = errors.New("not logged in, run: authctl login")
	errNotAdmin    = errors.New("admin role required")
)

type credentialsOptions struct {
	Email    string
	Username string
	Password string
}

func parseCredentialsFlags(name string, args []string, withUsername bool, out io.Writer) (credentialsOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	var opts credentialsOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Password; read from stdin when omitted")
	if withUsername {
		fs.StringVar(&opts.Username, "username", "", "Username (required)")
	}
	if err := fs.Parse(args); err != nil {
		return credentialsOptions{}, errUsage
	}

	opts.Email = strings.TrimSpace(opts.Email)
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Email == "" {
		return credentialsOptions{}, errors.New("--email is required")
	}
	if withUsername && opts.Username == "" {
		return credentialsOptions{}, errors.New("--username is required")
	}
	return opts, nil
}

func readPassword(cc *commandContext, opts *credentialsOptions) error {
	if opts.Password != "" {
		return nil
	}
	if err := writef(cc.Out, "Password: "); err != nil {
		return err
	}
	line, err := bufio.NewReader(cc.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.Wrap(err, "read password")
	}
	opts.Password = strings.TrimRight(line, "\r\n")
	if opts.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

func runLogin(cc *commandContext, args []string) error {
	opts, err := parseCredentialsFlags("login", args, false, cc.Out)
	if err != nil {
		return err
	}
	if err := readPassword(cc, &opts); err != nil {
		return err
	}

	if result := cc.Deps.Manager.Login(cc.Ctx, opts.Email, opts.Password); !result.OK {
		return result.Err
	}
	return printSignedIn(cc)
}

func runRegister(cc *commandContext, args []string) error {
	opts, err := parseCredentialsFlags("register", args, true, cc.Out)
	if err != nil {
		return err
	}
	if err := readPassword(cc, &opts); err != nil {
		return err
	}

	if result := cc.Deps.Manager.Register(cc.Ctx, opts.Email, opts.Username, opts.Password); !result.OK {
		return result.Err
	}
	return printSignedIn(cc)
}

func printSignedIn(cc *commandContext) error {
	snap := cc.Deps.Manager.Snapshot()
	return writef(cc.Out, "Logged in as %s (%s, %s)\n", snap.User.Name(), snap.User.Email, snap.User.Role)
}

// restore runs Initialize and reports whether a user is signed in.
func restore(cc *commandContext) (session.Snapshot, error) {
	if result := cc.Deps.Manager.Initialize(cc.Ctx); !result.OK {
		if result.Err.Kind == session.KindNetworkUnreachable {
			return session.Snapshot{}, result.Err
		}
		cc.Logger.Info().Str("reason", result.Reason()).Msg("stored session could not be restored")
	}
	return cc.Deps.Manager.Snapshot(), nil
}

func requireSignedIn(cc *commandContext) (session.Snapshot, error) {
	snap, err := restore(cc)
	if err != nil {
		return snap, err
	}
	if !snap.Authenticated {
		return snap, errNotLoggedIn
	}
	return snap, nil
}

func runWhoami(cc *commandContext, _ []string) error {
	snap, err := restore(cc)
	if err != nil {
		return err
	}
	if !snap.Authenticated {
		return writef(cc.Out, "Not logged in\n")
	}
	return printUser(cc.Out, snap)
}

func printUser(out io.Writer, snap session.Snapshot) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", snap.User.ID},
		{"Email", snap.User.Email},
		{"Username", snap.User.Username},
		{"Name", snap.User.Name()},
		{"Role", string(snap.User.Role)},
	}
	if !snap.AccessExpiresAt.IsZero() {
		rows = append(rows, [2]string{"Token expires", snap.AccessExpiresAt.Local().Format(time.RFC3339)})
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func runRefresh(cc *commandContext, _ []string) error {
	if result := cc.Deps.Manager.RefreshToken(cc.Ctx); !result.OK {
		return result.Err
	}
	snap := cc.Deps.Manager.Snapshot()
	if snap.AccessExpiresAt.IsZero() {
		return writef(cc.Out, "Token refreshed\n")
	}
	return writef(cc.Out, "Token refreshed, expires %s\n", snap.AccessExpiresAt.Local().Format(time.RFC3339))
}

func runLogout(cc *commandContext, _ []string) error {
	if _, err := restore(cc); err != nil {
		cc.Logger.Warn().Err(err).Msg("backend unreachable, clearing local credentials only")
	}
	cc.Deps.Manager.Logout(cc.Ctx)
	return writef(cc.Out, "Logged out\n")
}

type patchOptions struct {
	ID       string
	Name     string
	Username string
	Email    string
	Role     string
}

func parsePatchFlags(name string, args []string, admin bool, out io.Writer) (patchOptions, users.Patch, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	var opts patchOptions
	fs.StringVar(&opts.Name, "name", "", "New display name")
	fs.StringVar(&opts.Username, "username", "", "New username")
	fs.StringVar(&opts.Email, "email", "", "New email")
	if admin {
		fs.StringVar(&opts.ID, "id", "", "User ID (required)")
		fs.StringVar(&opts.Role, "role", "", "New role: user or admin")
	}
	if err := fs.Parse(args); err != nil {
		return patchOptions{}, users.Patch{}, errUsage
	}

	var patch users.Patch
	set := func(v string) *string {
		if v = strings.TrimSpace(v); v == "" {
			return nil
		}
		return utils.Ptr(v)
	}
	patch.DisplayName = set(opts.Name)
	patch.Username = set(opts.Username)
	patch.Email = set(opts.Email)
	if opts.Role != "" {
		role, err := users.ParseRole(opts.Role)
		if err != nil {
			return patchOptions{}, users.Patch{}, err
		}
		patch.Role = &role
	}

	opts.ID = strings.TrimSpace(opts.ID)
	if admin && opts.ID == "" {
		return patchOptions{}, users.Patch{}, errors.New("--id is required")
	}
	if patch.IsEmpty() {
		return patchOptions{}, users.Patch{}, errors.New("nothing to update")
	}
	return opts, patch, nil
}

func runProfile(cc *commandContext, args []string) error {
	_, patch, err := parsePatchFlags("profile", args, false, cc.Out)
	if err != nil {
		return err
	}
	if _, err := requireSignedIn(cc); err != nil {
		return err
	}

	updated, err := session.Authorized(cc.Ctx, cc.Deps.Manager, func(ctx context.Context) (*users.User, error) {
		return cc.Deps.Client.UpdateProfile(ctx, patch)
	})
	if err != nil {
		return err
	}
	cc.Deps.Manager.UpdateUser(patch)
	return writef(cc.Out, "Profile updated: %s <%s>\n", updated.Name(), updated.Email)
}

func runUsers(cc *commandContext, args []string) error {
	if len(args) < 1 {
		_ = writef(cc.Out, "Usage: authctl users <list|update|delete> [flags]\n")
		return errUsage
	}

	var sub func(cc *commandContext, args []string) error
	switch args[0] {
	case "list":
		sub = runUsersList
	case "update":
		sub = runUsersUpdate
	case "delete":
		sub = runUsersDelete
	default:
		return fmt.Errorf("unknown users subcommand %q", args[0])
	}

	snap, err := requireSignedIn(cc)
	if err != nil {
		return err
	}
	if !snap.User.IsAdmin() {
		return errNotAdmin
	}
	return sub(cc, args[1:])
}

func runUsersList(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("users list", flag.ContinueOnError)
	fs.SetOutput(cc.Out)
	page := fs.Int("page", 1, "Page number")
	limit := fs.Int("limit", 10, "Users per page")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	result, err := session.Authorized(cc.Ctx, cc.Deps.Manager, func(ctx context.Context) (users.UsersPage, error) {
		return cc.Deps.Client.ListUsers(ctx, *page, *limit)
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cc.Out, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\tEMAIL\tUSERNAME\tNAME\tROLE\n"); err != nil {
		return err
	}
	for _, u := range result.Users {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Username, u.DisplayName, u.Role); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return writef(cc.Out, "Page %d of %d (%d users)\n", result.Page, result.Pages(), result.Total)
}

func runUsersUpdate(cc *commandContext, args []string) error {
	opts, patch, err := parsePatchFlags("users update", args, true, cc.Out)
	if err != nil {
		return err
	}

	updated, err := session.Authorized(cc.Ctx, cc.Deps.Manager, func(ctx context.Context) (*users.User, error) {
		return cc.Deps.Client.UpdateUser(ctx, opts.ID, patch)
	})
	if err != nil {
		return err
	}
	if current := cc.Deps.Manager.Snapshot().User; current != nil && current.ID == updated.ID {
		cc.Deps.Manager.UpdateUser(patch)
	}
	return writef(cc.Out, "Updated user %s (%s, %s)\n", updated.ID, updated.Email, updated.Role)
}

func runUsersDelete(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("users delete", flag.ContinueOnError)
	fs.SetOutput(cc.Out)
	id := fs.String("id", "", "User ID (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	err := session.AuthorizedDo(cc.Ctx, cc.Deps.Manager, func(ctx context.Context) error {
		return cc.Deps.Client.DeleteUser(ctx, *id)
	})
	if err != nil {
		return err
	}
	return writef(cc.Out, "Deleted user %s\n", *id)
}
