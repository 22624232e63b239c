package solar

import (
	"context"
	"net/http"
	"strconv"

	"github.com/carlmjohnson/requests"
	"github.com/pkg/errors"
)

const astronomyURL = "https://api.ipgeolocation.io/v2/astronomy"

// SunPosition is the sun's horizontal coordinates as seen from the
// configured location.
type SunPosition struct {
	Azimuth   float64
	Elevation float64
}

type astronomyResponse struct {
	Astronomy struct {
		SunAzimuth  float64 `json:"sun_azimuth"`
		SunAltitude float64 `json:"sun_altitude"`
	} `json:"astronomy"`
}

// AstronomyClient fetches the sun position from the ipgeolocation
// astronomy API. The controller itself knows nothing about the sun.
type AstronomyClient struct {
	apiKey    string
	latitude  float64
	longitude float64
	hc        *http.Client
}

func NewAstronomyClient(apiKey string, latitude, longitude float64) *AstronomyClient {
	return &AstronomyClient{
		apiKey:    apiKey,
		latitude:  latitude,
		longitude: longitude,
		hc:        &http.Client{},
	}
}

func (c *AstronomyClient) SunPosition(ctx context.Context) (SunPosition, error) {
	var resp astronomyResponse
	err := requests.URL(astronomyURL).
		Client(c.hc).
		Param("lat", strconv.FormatFloat(c.latitude, 'f', 6, 64)).
		Param("long", strconv.FormatFloat(c.longitude, 'f', 6, 64)).
		Param("apiKey", c.apiKey).
		Accept("application/json").
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return SunPosition{}, errors.Wrap(err, "astronomy API request failed")
	}

	return SunPosition{
		Azimuth:   resp.Astronomy.SunAzimuth,
		Elevation: resp.Astronomy.SunAltitude,
	}, nil
}
