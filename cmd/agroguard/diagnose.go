package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/agroguard/internal/detection"
)

var historyLimit int

func init() {
	rootCmd.AddCommand(diagnoseCmd, historyCmd, insightsCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of records to show (0 for all)")
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <image>",
	Short: "Diagnose a crop photo and record the result",
	Long: `diagnose sends a JPEG, PNG or WebP leaf photo to the AI provider,
stores the diagnosis in the farm history and lists treatment resources.
Press Ctrl-C to cancel; nothing is recorded for a cancelled analysis.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		data, err := io.ReadAll(io.LimitReader(f, cfg.MaxImageBytes+1))
		f.Close()
		if err != nil {
			return err
		}

		fmt.Fprintln(out, labelStyle.Render("Analyzing with "+a.Gateway.ProviderName()+"..."))
		rec, err := a.Detector.Submit(ctx, data)
		if err != nil {
			return userError(out, err)
		}
		if entry, ok := a.Catalog.Lookup(rec.CropType, rec.DiseaseName); ok {
			printDetection(out, rec, &entry)
		} else {
			printDetection(out, rec, nil)
		}
		field(out, "Record", rec.ID)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [detection id]",
	Short: "List past detections, or show one",
	Args:  cobra.MaximumNArgs(1),
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

		if len(args) == 1 {
			rec, err := a.Store.GetDetection(cmd.Context(), sess.ID, args[0])
			if err != nil {
				return userError(out, err)
			}
			entry, ok := a.Catalog.Lookup(rec.CropType, rec.DiseaseName)
			if ok {
				printDetection(out, rec, &entry)
			} else {
				printDetection(out, rec, nil)
			}
			return nil
		}

		recs, err := a.Store.ListDetections(cmd.Context(), sess.ID)
		if err != nil {
			return userError(out, err)
		}
		if len(recs) == 0 {
			fmt.Fprintln(out, "No detections yet.")
			return nil
		}
		if historyLimit > 0 && len(recs) > historyLimit {
			recs = recs[:historyLimit]
		}
		for _, r := range recs {
			fmt.Fprintf(out, "%s  %s  %-7s %-28s %s %3.0f%%\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.CropType, r.DiseaseName,
				severity(r.SeverityLevel), r.ConfidenceScore)
		}
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Summarize the detection history",
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
		recs, err := a.Store.ListDetections(cmd.Context(), sess.ID)
		if err != nil {
			return userError(out, err)
		}
		ins := detection.Summarize(recs)
		field(out, "Total scans", ins.Total)
		field(out, "Severe cases", ins.Severe)
		if ins.TopCrop != "" {
			field(out, "Most scanned crop", ins.TopCrop)
		}
		if len(ins.Recent) > 0 {
			fmt.Fprintln(out, labelStyle.Render("Recent:"))
			for _, r := range ins.Recent {
				fmt.Fprintf(out, "  - %s %s (%s)\n", r.CropType, r.DiseaseName, severity(r.SeverityLevel))
			}
		}
		return nil
	},
}
