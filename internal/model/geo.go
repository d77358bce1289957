package model

// Coordinates is a [longitude, latitude] pair, the order map libraries expect.
type Coordinates [2]float64

// Longitude returns the first element of the pair.
func (c Coordinates) Longitude() float64 { return c[0] }

// Latitude returns the second element of the pair.
func (c Coordinates) Latitude() float64 { return c[1] }

// CountryResolution is the outcome of resolving one IP to a place.
type CountryResolution struct {
	IP          string      `json:"ip"`
	CountryCode string      `json:"country_code"` // ISO 3166-1 alpha-2
	CountryName string      `json:"country_name"`
	Coordinates Coordinates `json:"coordinates"`
}

// CountryAggregate is the per-country rollup used by the world map.
type CountryAggregate struct {
	CountryCode     string              `json:"country_code"`
	CountryName     string              `json:"country_name"`
	Coordinates     Coordinates         `json:"coordinates"`
	TotalEvents     int64               `json:"total_events"`
	EventTypeCounts map[EventType]int64 `json:"event_type_counts"`
}

// NewCountryAggregate creates an empty aggregate for a resolved country.
// Every known event type starts at zero so the map shape is stable.
func NewCountryAggregate(res *CountryResolution) *CountryAggregate {
	counts := make(map[EventType]int64, len(EventTypes))
	for _, t := range EventTypes {
		counts[t] = 0
	}
	return &CountryAggregate{
		CountryCode:     res.CountryCode,
		CountryName:     res.CountryName,
		Coordinates:     res.Coordinates,
		EventTypeCounts: counts,
	}
}

// Add accumulates count events of the given type.
func (a *CountryAggregate) Add(eventType EventType, count int64) {
	a.EventTypeCounts[eventType] += count
	a.TotalEvents += count
}

// WorldViewData is the payload behind the world map visualization.
type WorldViewData struct {
	EventsByCountry []CountryAggregate `json:"events_by_country"`
	TotalEvents     int64              `json:"total_events"`
	TotalCountries  int                `json:"total_countries"`
	DateRange       DateRange          `json:"date_range"`
}
