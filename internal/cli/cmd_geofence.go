package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"classlog/internal/geofence"
	"classlog/internal/verification/models"
)

type geofenceOutput struct {
	DistanceMeters int              `json:"distanceMeters"`
	Tier           models.MatchTier `json:"tier"`
}

func newGeofenceCmd() *cobra.Command {
	var device, reference string
	cmd := &cobra.Command{
		Use:   "geofence",
		Short: "Distance and match tier between a device fix and a reference point",
		Example: `  classlogctl geofence --device 0.3487,32.5825 --reference 0.3476,32.5825`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parsePoint(device)
			if err != nil {
				return fmt.Errorf("--device: %w", err)
			}
			r, err := parsePoint(reference)
			if err != nil {
				return fmt.Errorf("--reference: %w", err)
			}
			res, _ := geofence.Evaluate(d, r)
			return writeJSON(cmd.OutOrStdout(), geofenceOutput{DistanceMeters: res.DistanceMeters, Tier: res.Tier})
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "device coordinates as lat,lon")
	cmd.Flags().StringVar(&reference, "reference", "", "reference coordinates as lat,lon")
	_ = cmd.MarkFlagRequired("device")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

// parsePoint reads "lat,lon".
func parsePoint(raw string) (*models.GeoPoint, error) {
	lat, lon, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, fmt.Errorf("expected lat,lon, got %q", raw)
	}
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q", lat)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q", lon)
	}
	p := &models.GeoPoint{Latitude: latitude, Longitude: longitude}
	if !p.IsValid() {
		return nil, fmt.Errorf("coordinates out of range: %s", raw)
	}
	return p, nil
}
