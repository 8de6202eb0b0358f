package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/agroguard/internal/catalog"
	"github.com/suPer8Hu/agroguard/internal/models"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [crop] [disease]",
	Short: "Browse the built-in disease and treatment catalog",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cat := catalog.Default()

		if len(args) < 2 {
			var crop models.CropType
			if len(args) == 1 {
				c, ok := models.ParseCropType(args[0])
				if !ok {
					return fmt.Errorf("unknown crop %q", args[0])
				}
				crop = c
			}
			for _, d := range cat.List() {
				if crop != "" && d.CropType != crop {
					continue
				}
				fmt.Fprintf(out, "%-7s %-20s %s\n", d.CropType, d.CommonName, labelStyle.Render(d.ScientificName))
			}
			return nil
		}

		crop, ok := models.ParseCropType(args[0])
		if !ok {
			return fmt.Errorf("unknown crop %q", args[0])
		}
		e, ok := cat.Lookup(crop, args[1])
		if !ok {
			fmt.Fprintln(out, "Not in the catalog.")
			return nil
		}
		fmt.Fprintln(out, titleStyle.Render(e.Disease.CommonName))
		field(out, "Scientific name", e.Disease.ScientificName)
		field(out, "Causes", e.Disease.Causes)
		fmt.Fprintln(out, labelStyle.Render("Symptoms:"))
		for _, s := range e.Disease.Symptoms {
			fmt.Fprintf(out, "  - %s\n", s)
		}
		fmt.Fprintln(out, labelStyle.Render("Prevention:"))
		for _, s := range e.Disease.PreventionTips {
			fmt.Fprintf(out, "  - %s\n", s)
		}
		for _, t := range e.Treatments {
			fmt.Fprintln(out, titleStyle.Render(t.Name)+" "+labelStyle.Render(t.Type))
			field(out, "Instructions", t.Instructions)
			field(out, "Dosage", t.Dosage)
			field(out, "Frequency", t.Frequency)
			field(out, "Cost", fmt.Sprintf("%.0f-%.0f %s", t.CostMin, t.CostMax, t.Currency))
			field(out, "Safety", t.Safety)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
