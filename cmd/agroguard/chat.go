package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatAbout string

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatAbout, "about", "", "detection id to discuss")
}

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the agronomist assistant",
	Long: `chat answers one question when given as arguments, otherwise it reads
questions line by line until EOF or "exit". Conversations are not saved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		sess, err := a.Sessions.Require()
		if err != nil {
			return userError(out, err)
		}

		var seed string
		if chatAbout != "" {
			rec, err := a.Store.GetDetection(ctx, sess.ID, chatAbout)
			if err != nil {
				return userError(out, err)
			}
			seed = fmt.Sprintf("My %s was diagnosed with %s (%s severity, %.0f%% confidence).",
				rec.CropType, rec.DiseaseName, rec.SeverityLevel, rec.ConfidenceScore)
		}
		conv, err := a.Chat.CreateConversation(ctx, sess.ID, seed)
		if err != nil {
			return userError(out, err)
		}

		ask := func(q string) error {
			reply, err := a.Chat.SendMessage(ctx, sess.ID, conv.ID, q)
			if err != nil {
				return userError(out, err)
			}
			fmt.Fprintln(out, markdown(reply.Content))
			printLinks(out, reply.Links)
			return nil
		}

		if len(args) > 0 {
			return ask(strings.Join(args, " "))
		}

		sc := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprint(out, "> ")
		for sc.Scan() {
			q := strings.TrimSpace(sc.Text())
			if q == "exit" || q == "quit" {
				break
			}
			if q != "" {
				// failures are shown; the conversation goes on
				_ = ask(q)
			}
			fmt.Fprint(out, "> ")
		}
		return sc.Err()
	},
}
