package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/services"
	"github.com/autisahara/companion/internal/utils"
)

func newLaunchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "launch",
		Short: "Resolve the screen the user should land on",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			return o.launch(ctx, a, "")
		}),
	}
}

func (o *rootOptions) launch(ctx context.Context, a *app, noteKey string) error {
	res, err := a.journey.Launch(ctx)
	if err != nil {
		return o.fail(ctx, a, err)
	}
	return o.print(launchView(a.language(ctx), res, noteKey))
}

func newLanguageCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "language <en|ne>",
		Short:     "Store the language preference",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.LanguageEnglish), string(models.LanguageNepali)},
		RunE: o.run(func(ctx context.Context, a *app, args []string) error {
			step, err := a.journey.SelectLanguage(ctx, models.Language(strings.ToLower(args[0])))
			if err != nil {
				return o.fail(ctx, a, err)
			}
			lang := a.language(ctx)
			return o.print(map[string]any{
				"step":     step,
				"language": lang,
				"message":  utils.T(lang, "language.saved"),
			})
		}),
	}
}

func newLoginCmd(o *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and land on the next screen",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			if _, err := a.auth.Login(ctx, email, password); err != nil {
				return o.fail(ctx, a, err)
			}
			return o.launch(ctx, a, "")
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newSignupCmd(o *rootOptions) *cobra.Command {
	var form services.SignupForm
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a parent account",
		Long: `Create a parent account. When the server signs the new account in
right away the next screen is resolved as after login; otherwise the
sign-in screen follows.`,
		Args: cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			if _, err := a.auth.Signup(ctx, form); err != nil {
				return o.fail(ctx, a, err)
			}
			return o.launch(ctx, a, "signup.done")
		}),
	}
	cmd.Flags().StringVar(&form.FullName, "name", "", "parent full name")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "contact phone number")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "account password again")
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard local form data",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			if err := a.auth.Logout(ctx); err != nil {
				return o.fail(ctx, a, err)
			}
			return o.launch(ctx, a, "auth.logged_out")
		}),
	}
}

func newSectionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "section <id> [field=value ...]",
		Short: "Save one registration form section",
		Long: `Save one section of the registration form. Values are given as
field=value pairs; multi-choice fields take a comma separated list.
Saving replaces whatever the section held before.`,
		Args: cobra.MinimumNArgs(1),
		RunE: o.run(func(ctx context.Context, a *app, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("section id %q: %w", args[0], err)
			}
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			if err := a.drafts.SetSection(ctx, id, fields); err != nil {
				return o.fail(ctx, a, err)
			}
			return o.print(map[string]any{
				"section":  id,
				"complete": a.drafts.IsComplete(ctx),
				"message":  utils.T(a.language(ctx), "section.saved"),
			})
		}),
	}
}

func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, kv := range args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected field=value, got %q", kv)
		}
		fields[strings.TrimSpace(k)] = v
	}
	return fields, nil
}

func newMediaCmd(o *rootOptions) *cobra.Command {
	var ref models.MediaReference
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Attach a recorded video to the registration",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			if err := a.drafts.SetMedia(ctx, ref); err != nil {
				return o.fail(ctx, a, err)
			}
			return o.print(map[string]any{
				"media":   ref,
				"message": utils.T(a.language(ctx), "media.saved"),
			})
		}),
	}
	cmd.Flags().StringVar(&ref.URI, "uri", "", "local URI of the video")
	cmd.Flags().StringVar(&ref.Kind, "kind", "other", "walking, eating, speaking, behavior, playing or other")
	cmd.Flags().StringVar(&ref.Description, "description", "", "free text shown to the reviewer")
	return cmd
}

func newDashboardCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show every child with assessment status and curriculum day",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			d, err := a.journey.Dashboard(ctx)
			if err != nil {
				return o.fail(ctx, a, err)
			}
			return o.print(dashboardView(a.language(ctx), d))
		}),
	}
}

func newSubmitCmd(o *rootOptions) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the registration form",
		Long: `Submit the completed registration form together with the attached
video reference. A repeated submit after an acknowledgment reports the
recorded id without sending again; pass --new to register another child.`,
		Args: cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app, _ []string) error {
			if fresh {
				if err := a.pipeline.Reset(ctx); err != nil {
					return o.fail(ctx, a, err)
				}
			}
			res, err := a.pipeline.Submit(ctx)
			if err != nil {
				extra := map[string]any{"state": res.State}
				if res.State == services.SubmissionFailed {
					extra["message"] = utils.T(a.language(ctx), "submission.failed")
				}
				return o.failWith(ctx, a, err, extra)
			}
			return o.print(submissionView(a.language(ctx), res))
		}),
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "forget the previous acknowledgment first")
	return cmd
}

func newConfirmCmd(o *rootOptions) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "confirm <child-id>",
		Short: "Send a child's assessment for doctor review",
		Args:  cobra.ExactArgs(1),
		RunE: o.run(func(ctx context.Context, a *app, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("child id %q: %w", args[0], err)
			}
			status, err := a.pipeline.ConfirmAssessment(ctx, id, confirmed)
			if err != nil {
				return o.fail(ctx, a, err)
			}
			lang := a.language(ctx)
			return o.print(map[string]any{
				"child":   id,
				"status":  status.State,
				"message": utils.T(lang, "assessment.submitted"),
			})
		}),
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the parent declaration")
	return cmd
}
