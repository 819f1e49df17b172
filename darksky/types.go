package darksky

// Forecast is the root document returned by the forecast and Time Machine
// endpoints. Most blocks are optional because they can be excluded through
// Options.Exclude or are simply not reported for a location.
type Forecast struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timezone  string     `json:"timezone"`         // IANA name, e.g. "America/Los_Angeles"
	Offset    *float64   `json:"offset,omitempty"` // Hours from UTC
	Currently *Datapoint `json:"currently,omitempty"`
	Minutely  *Datablock `json:"minutely,omitempty"`
	Hourly    *Datablock `json:"hourly,omitempty"`
	Daily     *Datablock `json:"daily,omitempty"`
	Alerts    []Alert    `json:"alerts"` // Empty, never nil, after decoding
	Flags     *Flags     `json:"flags,omitempty"`
}

// UnmarshalJSON decodes a forecast, requiring the location fields.
func (f *Forecast) UnmarshalJSON(data []byte) error {
	type forecastAlias Forecast
	var aux forecastAlias
	if err := decodeStrict(data, &aux, "latitude", "longitude", "timezone"); err != nil {
		return err
	}
	if aux.Alerts == nil {
		aux.Alerts = []Alert{}
	}
	*f = Forecast(aux)
	return nil
}

// Datablock groups the datapoints of one granularity.
type Datablock struct {
	Data    []Datapoint `json:"data,omitempty"`
	Icon    *Icon       `json:"icon,omitempty"`
	Summary *string     `json:"summary,omitempty"`
}

// Datapoint is a single observation or prediction.
//
// Every field except Time may be absent, so they are pointers: nil means the
// API did not report the value, which is different from a reported zero.
// Fields ending in Error carry the standard deviation of the matching value.
// Fields ending in Time are Unix timestamps. Several fields only appear on
// one block (e.g. SunriseTime and MoonPhase on daily, NearestStormDistance on
// currently).
type Datapoint struct {
	Time int64 `json:"time"`

	Summary *string `json:"summary,omitempty"`
	Icon    *Icon   `json:"icon,omitempty"`

	Temperature                *float64 `json:"temperature,omitempty"`
	TemperatureError           *float64 `json:"temperatureError,omitempty"`
	TemperatureHigh            *float64 `json:"temperatureHigh,omitempty"`
	TemperatureHighTime        *int64   `json:"temperatureHighTime,omitempty"`
	TemperatureLow             *float64 `json:"temperatureLow,omitempty"`
	TemperatureLowTime         *int64   `json:"temperatureLowTime,omitempty"`
	TemperatureMax             *float64 `json:"temperatureMax,omitempty"`
	TemperatureMaxError        *float64 `json:"temperatureMaxError,omitempty"`
	TemperatureMaxTime         *int64   `json:"temperatureMaxTime,omitempty"`
	TemperatureMin             *float64 `json:"temperatureMin,omitempty"`
	TemperatureMinError        *float64 `json:"temperatureMinError,omitempty"`
	TemperatureMinTime         *int64   `json:"temperatureMinTime,omitempty"`
	ApparentTemperature        *float64 `json:"apparentTemperature,omitempty"`
	ApparentTemperatureMax     *float64 `json:"apparentTemperatureMax,omitempty"`
	ApparentTemperatureMaxTime *int64   `json:"apparentTemperatureMaxTime,omitempty"`
	ApparentTemperatureMin     *float64 `json:"apparentTemperatureMin,omitempty"`
	ApparentTemperatureMinTime *int64   `json:"apparentTemperatureMinTime,omitempty"`

	CloudCover      *float64 `json:"cloudCover,omitempty"` // 0..1
	CloudCoverError *float64 `json:"cloudCoverError,omitempty"`
	DewPoint        *float64 `json:"dewPoint,omitempty"`
	DewPointError   *float64 `json:"dewPointError,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"` // 0..1
	HumidityError   *float64 `json:"humidityError,omitempty"`
	Pressure        *float64 `json:"pressure,omitempty"` // Sea-level, millibars
	PressureError   *float64 `json:"pressureError,omitempty"`
	Ozone           *float64 `json:"ozone,omitempty"` // Dobson units
	OzoneError      *float64 `json:"ozoneError,omitempty"`
	Visibility      *float64 `json:"visibility,omitempty"`
	VisibilityError *float64 `json:"visibilityError,omitempty"`
	UVIndex         *int64   `json:"uvIndex,omitempty"`
	UVIndexTime     *int64   `json:"uvIndexTime,omitempty"`
	MoonPhase       *float64 `json:"moonPhase,omitempty"` // Lunation fraction, 0 new moon, 0.5 full
	SunriseTime     *int64   `json:"sunriseTime,omitempty"`
	SunsetTime      *int64   `json:"sunsetTime,omitempty"`

	NearestStormBearing  *float64 `json:"nearestStormBearing,omitempty"`
	NearestStormDistance *float64 `json:"nearestStormDistance,omitempty"`

	PrecipAccumulation      *float64           `json:"precipAccumulation,omitempty"`
	PrecipAccumulationError *float64           `json:"precipAccumulationError,omitempty"`
	PrecipIntensity         *float64           `json:"precipIntensity,omitempty"`
	PrecipIntensityError    *float64           `json:"precipIntensityError,omitempty"`
	PrecipIntensityMax      *float64           `json:"precipIntensityMax,omitempty"`
	PrecipIntensityMaxError *float64           `json:"precipIntensityMaxError,omitempty"`
	PrecipIntensityMaxTime  *int64             `json:"precipIntensityMaxTime,omitempty"`
	PrecipProbability       *float64           `json:"precipProbability,omitempty"` // 0..1
	PrecipProbabilityError  *float64           `json:"precipProbabilityError,omitempty"`
	PrecipType              *PrecipitationType `json:"precipType,omitempty"`

	WindBearing      *float64 `json:"windBearing,omitempty"` // Degrees, wind coming from
	WindBearingError *float64 `json:"windBearingError,omitempty"`
	WindGust         *float64 `json:"windGust,omitempty"`
	WindGustTime     *int64   `json:"windGustTime,omitempty"`
	WindSpeed        *float64 `json:"windSpeed,omitempty"`
	WindSpeedError   *float64 `json:"windSpeedError,omitempty"`
}

// UnmarshalJSON decodes a datapoint, requiring its timestamp.
func (d *Datapoint) UnmarshalJSON(data []byte) error {
	type datapointAlias Datapoint
	var aux datapointAlias
	if err := decodeStrict(data, &aux, "time"); err != nil {
		return err
	}
	*d = Datapoint(aux)
	return nil
}

// Alert is a severe weather warning issued for the location.
type Alert struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URI         string   `json:"uri"`
	Regions     []string `json:"regions"`
	Severity    Severity `json:"severity"`
	Time        int64    `json:"time"`    // Issued at, Unix seconds
	Expires     int64    `json:"expires"` // Unix seconds
}

// UnmarshalJSON decodes an alert; every alert field is required.
func (a *Alert) UnmarshalJSON(data []byte) error {
	type alertAlias Alert
	var aux alertAlias
	if err := decodeStrict(data, &aux, "title", "description", "uri", "regions", "severity", "time", "expires"); err != nil {
		return err
	}
	*a = Alert(aux)
	return nil
}

// Flags is the metadata block of a forecast.
type Flags struct {
	DarkskyStations    []string `json:"darksky-stations,omitempty"`
	DarkskyUnavailable *string  `json:"darksky-unavailable,omitempty"`
	DatapointStations  []string `json:"datapoint-stations,omitempty"`
	ISDStations        []string `json:"isd-stations,omitempty"`
	LAMPStations       []string `json:"lamp-stations,omitempty"`
	METARStations      []string `json:"metar-stations,omitempty"`
	METNOLicense       *string  `json:"metno-license,omitempty"`
	Sources            []string `json:"sources,omitempty"`
	Units              *string  `json:"units,omitempty"`
}
