// Package models - Earthquake event types.
// These mirror the GeoJSON documents returned by the USGS FDSN event service.
// Fields the service may report as null are pointers so that a round trip
// through the cache preserves null rather than inventing zero values.
package models

// Earthquake is a single GeoJSON Feature describing one seismic event.
type Earthquake struct {
	Type       string               `json:"type"`
	ID         string               `json:"id"`
	Properties EarthquakeProperties `json:"properties"`
	Geometry   Geometry             `json:"geometry"`
}

type EarthquakeProperties struct {
	Mag     *float64 `json:"mag"`
	Place   *string  `json:"place"`
	Time    int64    `json:"time"`
	Updated int64    `json:"updated"`
	TZ      *int     `json:"tz"`
	URL     string   `json:"url"`
	Detail  string   `json:"detail"`
	Felt    *int     `json:"felt"`
	CDI     *float64 `json:"cdi"`
	MMI     *float64 `json:"mmi"`
	Alert   *string  `json:"alert"`
	Status  string   `json:"status"`
	Tsunami int      `json:"tsunami"`
	Sig     int      `json:"sig"`
	Net     string   `json:"net"`
	Code    string   `json:"code"`
	IDs     string   `json:"ids"`
	Sources string   `json:"sources"`
	Types   string   `json:"types"`
	NST     *int     `json:"nst"`
	DMin    *float64 `json:"dmin"`
	RMS     *float64 `json:"rms"`
	Gap     *float64 `json:"gap"`
	MagType string   `json:"magType"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
}

// Geometry holds [longitude, latitude, depth] coordinates.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// EarthquakeCollection is the envelope returned by collection queries.
type EarthquakeCollection struct {
	Type     string             `json:"type"`
	Metadata CollectionMetadata `json:"metadata"`
	Features []Earthquake       `json:"features"`
	BBox     []float64          `json:"bbox,omitempty"`
}

type CollectionMetadata struct {
	Generated int64  `json:"generated"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	API       string `json:"api"`
	Count     int    `json:"count"`
}
