package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/agroguard/internal/models"
)

var (
	profFarmName string
	profLocation string
	profLat      float64
	profLng      float64
	profSize     float64
	profCrops    []string
	profPicture  string
	profNoCoords bool
)

func init() {
	rootCmd.AddCommand(profileCmd, themeCmd)
	profileCmd.AddCommand(profileShowCmd, profileSetCmd)

	f := profileSetCmd.Flags()
	f.StringVar(&profFarmName, "name", "", "farm name")
	f.StringVar(&profLocation, "location", "", "farm location")
	f.Float64Var(&profLat, "lat", 0, "latitude")
	f.Float64Var(&profLng, "lng", 0, "longitude")
	f.BoolVar(&profNoCoords, "clear-coords", false, "remove the map pin")
	f.Float64Var(&profSize, "hectares", 0, "farm size in hectares")
	f.StringSliceVar(&profCrops, "crops", nil, "primary crops (Tomato, Potato, Corn, Rice)")
	f.StringVar(&profPicture, "picture", "", "profile picture URL")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit the farm profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the farm profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		p, err := a.Sessions.Profile(cmd.Context())
		if err != nil {
			return userError(out, err)
		}
		printProfile(cmd, p)
		return nil
	},
}

// profileSetCmd applies only the flags that were given.
var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the farm profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		cur, err := a.Sessions.Profile(cmd.Context())
		if err != nil {
			return userError(out, err)
		}
		p := *cur
		f := cmd.Flags()
		if f.Changed("name") {
			p.FarmName = profFarmName
		}
		if f.Changed("location") {
			p.Location = profLocation
		}
		if f.Changed("lat") {
			v := profLat
			p.Latitude = &v
		}
		if f.Changed("lng") {
			v := profLng
			p.Longitude = &v
		}
		if profNoCoords {
			p.Latitude, p.Longitude = nil, nil
		}
		if f.Changed("hectares") {
			p.SizeHectares = profSize
		}
		if f.Changed("crops") {
			p.PrimaryCrops = p.PrimaryCrops[:0:0]
			for _, c := range profCrops {
				crop, ok := models.ParseCropType(c)
				if !ok {
					crop = models.CropType(c)
				}
				p.PrimaryCrops = append(p.PrimaryCrops, crop)
			}
		}
		if f.Changed("picture") {
			p.ProfilePictureURL = profPicture
		}

		saved, err := a.Sessions.SaveProfile(cmd.Context(), p)
		if err != nil {
			return userError(out, err)
		}
		printProfile(cmd, saved)
		return nil
	},
}

func printProfile(cmd *cobra.Command, p *models.FarmProfile) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(p.FarmName))
	if p.Location != "" {
		field(out, "Location", p.Location)
	}
	if p.HasCoordinates() {
		field(out, "Coordinates", fmt.Sprintf("%.4f, %.4f", *p.Latitude, *p.Longitude))
	}
	field(out, "Size", fmt.Sprintf("%.2f ha", p.SizeHectares))
	if len(p.PrimaryCrops) > 0 {
		field(out, "Crops", strings.Join(models.StringValues(p.PrimaryCrops), ", "))
	}
}

var themeCmd = &cobra.Command{
	Use:   "theme [light|dark]",
	Short: "Show or set the display theme",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			if err := a.Store.SetTheme(cmd.Context(), models.Theme(args[0])); err != nil {
				return userError(out, err)
			}
		}
		th, err := a.Store.GetTheme(cmd.Context())
		if err != nil {
			return userError(out, err)
		}
		fmt.Fprintln(out, th)
		return nil
	},
}
