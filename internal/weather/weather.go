// Package weather fetches the latest observation for a WeatherFlow station
// and renders it as an mrkdwn report.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("weatherflow api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = "https://swd.weatherflow.com/swd/rest"
	}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}, nil
}

type observation struct {
	AirTemperature        float64 `json:"air_temperature"`
	FeelsLike             float64 `json:"feels_like"`
	RelativeHumidity      float64 `json:"relative_humidity"`
	WindGust              float64 `json:"wind_gust"`
	WindDirection         float64 `json:"wind_direction"`
	SeaLevelPressure      float64 `json:"sea_level_pressure"`
	PrecipAccumLastHour   float64 `json:"precip_accum_last_1hr"`
	Precip                float64 `json:"precip"`
	SolarRadiation        float64 `json:"solar_radiation"`
	UV                    float64 `json:"uv"`
	LightningStrikeLastKm float64 `json:"lightning_strike_last_distance"`
}

type stationResponse struct {
	PublicName string        `json:"public_name"`
	Obs        []observation `json:"obs"`
}

// StationReport fetches the station's latest observation and formats it.
// API failures return a friendly message rather than an error so the reply
// path never goes silent.
func (c *Client) StationReport(ctx context.Context, stationID string) string {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return "WeatherFlow station ID not provided."
	}

	url := fmt.Sprintf("%s/observations/station/%s?api_key=%s", c.baseURL, stationID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "Could not retrieve weather data from WeatherFlow API."
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "Could not retrieve weather data from WeatherFlow API."
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil || resp.StatusCode != http.StatusOK {
		return "Could not retrieve weather data from WeatherFlow API."
	}

	var out stationResponse
	if err := json.Unmarshal(body, &out); err != nil || len(out.Obs) == 0 {
		return "Could not retrieve weather data from WeatherFlow API."
	}
	obs := out.Obs[0]

	return fmt.Sprintf(
		"*%s Weather Report*\n"+
			"*Temperature/Feels Like:* %.1f°C/%.1f°C | *Humidity:* %.0f%% | "+
			"*Wind Gust/Direction:* %.1fkm/h - %s | *Pressure:* %.1f mb | "+
			"*Rain Rate/Accumulated:* %.1fmm/hr/%.1fmm | "+
			"*Last Lightning Strike Distance:* %.0fkm | "+
			"*Solar Radiation:* %.0fW/m^2 | *UV Index:* %.1f",
		out.PublicName,
		obs.AirTemperature, obs.FeelsLike,
		obs.RelativeHumidity,
		obs.WindGust, DegreesToCardinal(obs.WindDirection),
		obs.SeaLevelPressure,
		obs.PrecipAccumLastHour, obs.Precip,
		obs.LightningStrikeLastKm,
		obs.SolarRadiation, obs.UV,
	)
}

// DegreesToCardinal converts a wind direction in degrees to its compass
// point.
func DegreesToCardinal(degrees float64) string {
	switch {
	case degrees < 22.5:
		return "N"
	case degrees < 67.5:
		return "NE"
	case degrees < 112.5:
		return "E"
	case degrees < 157.5:
		return "SE"
	case degrees < 202.5:
		return "S"
	case degrees < 247.5:
		return "SW"
	case degrees < 292.5:
		return "W"
	case degrees < 337.5:
		return "NW"
	default:
		return "N"
	}
}
