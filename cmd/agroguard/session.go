package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/agroguard/internal/models"
)

var (
	registerPlan string
	registerCopy bool
)

func init() {
	rootCmd.AddCommand(registerCmd, redeemCmd, logoutCmd, whoamiCmd, planCmd)

	registerCmd.Flags().StringVar(&registerPlan, "plan", "Free", "subscription plan (Free, Pro, Enterprise)")
	registerCmd.Flags().BoolVar(&registerCopy, "copy", false, "copy the access key to the clipboard")
}

var registerCmd = &cobra.Command{
	Use:   "register <farm name>",
	Short: "Create a new farm session and print its access key",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		reg, err := a.Sessions.Register(cmd.Context(), strings.Join(args, " "), models.Plan(registerPlan))
		if err != nil {
			return userError(out, err)
		}
		fmt.Fprintln(out, titleStyle.Render("Farm registered"))
		field(out, "Access key", reg.AccessKey)
		field(out, "Plan", reg.Session.Plan)
		fmt.Fprintln(out, labelStyle.Render("Keep the access key. It is the only way back into this farm."))

		if registerCopy {
			if err := clipboard.WriteAll(reg.AccessKey); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
			} else {
				fmt.Fprintln(out, "Access key copied to clipboard!")
			}
		}
		return nil
	},
}

var redeemCmd = &cobra.Command{
	Use:   "redeem <access code>",
	Short: "Sign in with an access code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		sess, err := a.Sessions.RedeemCode(cmd.Context(), args[0])
		if err != nil {
			return userError(out, err)
		}
		fmt.Fprintf(out, "Signed in as %s\n", sess.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if err := a.Sessions.Logout(cmd.Context()); err != nil {
			return userError(out, err)
		}
		fmt.Fprintf(out, "Signed out (data %s)\n", cfg.LogoutPolicy)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		sess, err := a.Sessions.Require()
		if err != nil {
			return userError(out, err)
		}
		field(out, "Session", sess.ID)
		field(out, "Access code", sess.AccessCode)
		if sess.Plan != "" {
			field(out, "Plan", fmt.Sprintf("%s (%s)", sess.Plan, sess.SubscriptionStatus))
		}
		field(out, "Since", sess.CreatedAt.Local().Format("2006-01-02 15:04"))
		field(out, "Provider", a.Gateway.ProviderName())
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:       "plan <Free|Pro|Enterprise>",
	Short:     "Change the subscription plan",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"Free", "Pro", "Enterprise"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		sess, err := a.Sessions.ChangePlan(cmd.Context(), models.Plan(args[0]))
		if err != nil {
			return userError(out, err)
		}
		fmt.Fprintf(out, "Plan is now %s\n", sess.Plan)
		return nil
	},
}
