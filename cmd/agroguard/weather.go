package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/agroguard/internal/ai"
)

var (
	weatherLocation string
	weatherLat      float64
	weatherLng      float64
)

func init() {
	rootCmd.AddCommand(weatherCmd, marketCmd)
	weatherCmd.Flags().StringVar(&weatherLocation, "location", "", "place name (default: farm profile)")
	weatherCmd.Flags().Float64Var(&weatherLat, "lat", 0, "latitude")
	weatherCmd.Flags().Float64Var(&weatherLng, "lng", 0, "longitude")
}

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Five-day agricultural forecast",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		q := ai.WeatherQuery{Location: weatherLocation}
		if cmd.Flags().Changed("lat") {
			v := weatherLat
			q.Latitude = &v
		}
		if cmd.Flags().Changed("lng") {
			v := weatherLng
			q.Longitude = &v
		}
		if q.Location == "" && q.Latitude == nil && q.Longitude == nil {
			p, err := a.Sessions.Profile(cmd.Context())
			if err != nil {
				return userError(out, err)
			}
			q.Location, q.Latitude, q.Longitude = p.Location, p.Latitude, p.Longitude
		}

		res, err := a.Gateway.Weather(cmd.Context(), q)
		if err != nil {
			return userError(out, err)
		}
		fmt.Fprintln(out, titleStyle.Render("Forecast for "+res.Location))
		for _, d := range res.Days {
			fmt.Fprintf(out, "  %-5s %-18s %4.0f°C / %4.0f°C  rain %3.0f%%\n", d.Day, d.Condition, d.HighC, d.LowC, d.RainChance)
		}
		if res.Alert != "" {
			fmt.Fprintln(out, errStyle.Render(res.Alert))
		}
		printLinks(out, res.Links)
		return nil
	},
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Current commodity prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		res, err := a.Gateway.MarketPrices(cmd.Context())
		if err != nil {
			return userError(out, err)
		}
		fmt.Fprintln(out, titleStyle.Render("Market prices, "+res.Region))
		for _, p := range res.Prices {
			fmt.Fprintf(out, "  %-8s %10.2f %s/%s  %s\n", p.Crop, p.Price, p.Currency, p.Unit, trendArrow(p.Trend))
		}
		printLinks(out, res.Links)
		return nil
	},
}

func trendArrow(t ai.Trend) string {
	switch t {
	case ai.TrendUp:
		return "▲"
	case ai.TrendDown:
		return "▼"
	}
	return "="
}
