package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/askbar/internal/identity"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/urfave/cli/v3"
)

// reported turns a manager error into a short exit error. The notifier has
// already shown the user-facing message.
func reported(err error) error {
	var e *identity.Error
	if errors.As(err, &e) {
		return fmt.Errorf("%s failed", e.Op)
	}
	return err
}

func signUpCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account and profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("ASKBAR_PASSWORD")},
			&cli.StringFlag{Name: "username", Required: true},
		},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			err := s.manager.SignUp(ctx, identity.SignUpInput{
				Email:    c.String("email"),
				Password: c.String("password"),
				Username: c.String("username"),
			})
			if err != nil {
				return reported(err)
			}
			waitForProfile(ctx, s.manager, 2*time.Second)
			return nil
		}),
	}
}

func signInCommand() *cli.Command {
	return &cli.Command{
		Name:  "signin",
		Usage: "Sign in with email and password",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("ASKBAR_PASSWORD")},
		},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			err := s.manager.SignIn(ctx, identity.SignInInput{
				Email:    c.String("email"),
				Password: c.String("password"),
			})
			if err != nil {
				return reported(err)
			}
			waitForProfile(ctx, s.manager, 2*time.Second)
			return nil
		}),
	}
}

func signOutCommand() *cli.Command {
	return &cli.Command{
		Name:  "signout",
		Usage: "Sign out on this device and end the session on the server",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			if !s.manager.Snapshot().SignedIn() {
				fmt.Fprintln(s.out, "not signed in")
				return nil
			}
			return reported(s.manager.SignOut(ctx))
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in identity and profile",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			st := s.manager.Snapshot()
			if c.Bool("json") {
				return printJSON(s.out, struct {
					Identity *identity.Identity `json:"identity"`
					Profile  *identity.Profile  `json:"profile"`
				}{st.Identity, st.Profile})
			}
			if !st.SignedIn() {
				fmt.Fprintln(s.out, "not signed in")
				return nil
			}
			rows := [][2]string{
				{"id", st.Identity.ID},
				{"email", st.Identity.Email},
			}
			if st.Session != nil {
				rows = append(rows, [2]string{"expires", formatTime(st.Session.ExpiresAt)})
			}
			printKV(s.out, rows)
			if st.Profile == nil {
				fmt.Fprintln(s.out, "no profile")
				return nil
			}
			fmt.Fprintln(s.out)
			printProfile(s.out, st.Profile)
			return nil
		}),
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or edit profiles",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a profile; defaults to your own",
				ArgsUsage: "[id]",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					id := c.Args().First()
					if id == "" {
						st := s.manager.Snapshot()
						if !st.SignedIn() {
							return errors.New("not signed in; pass a profile id")
						}
						id = st.Identity.ID
					}
					p, err := s.client.GetProfile(ctx, id)
					if errors.Is(err, identitysdk.ErrProfileNotFound) {
						return fmt.Errorf("no profile with id %s", id)
					}
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(s.out, p)
					}
					printProfile(s.out, p)
					return nil
				}),
			},
			{
				Name:  "update",
				Usage: "Change your own profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username"},
					&cli.StringFlag{Name: "bio"},
					&cli.StringFlag{Name: "avatar-url"},
					&cli.StringSliceFlag{Name: "interest", Usage: "repeat for each interest; pass one empty value to clear"},
				},
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					patch := patchFromFlags(c)
					if patch.IsEmpty() {
						return errors.New("nothing to update")
					}
					return reported(s.manager.UpdateProfile(ctx, patch))
				}),
			},
		},
	}
}

func patchFromFlags(c *cli.Command) identity.ProfilePatch {
	var patch identity.ProfilePatch
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	patch.Username = str("username")
	patch.Bio = str("bio")
	patch.AvatarURL = str("avatar-url")
	if c.IsSet("interest") {
		interests := []string{}
		for _, v := range c.StringSlice("interest") {
			if v = strings.TrimSpace(v); v != "" {
				interests = append(interests, v)
			}
		}
		patch.Interests = &interests
	}
	return patch
}

func oauthCommand() *cli.Command {
	return &cli.Command{
		Name:  "oauth",
		Usage: "Start sign-in with an external provider",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Required: true, Usage: "e.g. github, google"},
			&cli.StringFlag{Name: "redirect-to", Value: "askbar://auth/callback"},
		},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			return reported(s.manager.SignInWithOAuth(ctx, c.String("provider"), c.String("redirect-to")))
		}),
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the identity backend is ready",
		Action: func(ctx context.Context, c *cli.Command) error {
			root := c.Root()
			client := identitysdk.NewClient(root.String("server"), nil)
			h, err := client.GetReadiness(ctx)
			if err != nil {
				return err
			}
			rows := [][2]string{
				{"status", h.Status},
				{"version", h.Version},
				{"uptime", h.Uptime},
			}
			if h.Checks != nil {
				rows = append(rows,
					[2]string{"database", h.Checks.Database},
					[2]string{"signer", h.Checks.Signer},
				)
			}
			printKV(root.Writer, rows)
			return nil
		},
	}
}

// waitForProfile gives the event-driven profile load a moment to land so the
// command can report who is signed in.
func waitForProfile(ctx context.Context, m *identity.Manager, limit time.Duration) {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()

	for {
		changes := m.Changes()
		st := m.Snapshot()
		if st.Profile != nil || !st.SignedIn() && st.Initialized && !st.Loading {
			return
		}
		select {
		case <-changes:
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}
