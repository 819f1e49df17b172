package darksky

import (
	"encoding/json"
)

// Block names a section of the forecast that can be excluded from a response.
type Block string

const (
	BlockCurrently Block = "currently"
	BlockDaily     Block = "daily"
	BlockFlags     Block = "flags"
	BlockHourly    Block = "hourly"
	BlockMinutely  Block = "minutely"
)

// Language selects the language of summary texts. English is the API default.
type Language string

const (
	Arabic             Language = "ar"
	Azerbaijani        Language = "az"
	Belarusian         Language = "be"
	Bosnian            Language = "bs"
	Czech              Language = "cs"
	German             Language = "de"
	Greek              Language = "el"
	English            Language = "en"
	Spanish            Language = "es"
	French             Language = "fr"
	Croatian           Language = "hr"
	Hungarian          Language = "hu"
	Indonesian         Language = "id"
	Italian            Language = "it"
	Icelandic          Language = "is"
	Cornish            Language = "kw"
	NorwegianBokmal    Language = "nb"
	Dutch              Language = "nl"
	Polish             Language = "pl"
	Portuguese         Language = "pt"
	Russian            Language = "ru"
	Slovak             Language = "sk"
	Serbian            Language = "sr"
	Swedish            Language = "sv"
	Tetum              Language = "tet"
	Turkish            Language = "tr"
	Ukrainian          Language = "uk"
	PigLatin           Language = "x-pig-latin"
	ChineseSimplified  Language = "zh"
	ChineseTraditional Language = "zh-tw"
)

var knownLanguages = map[Language]bool{
	Arabic: true, Azerbaijani: true, Belarusian: true, Bosnian: true, Czech: true,
	German: true, Greek: true, English: true, Spanish: true, French: true,
	Croatian: true, Hungarian: true, Indonesian: true, Italian: true, Icelandic: true,
	Cornish: true, NorwegianBokmal: true, Dutch: true, Polish: true, Portuguese: true,
	Russian: true, Slovak: true, Serbian: true, Swedish: true, Tetum: true,
	Turkish: true, Ukrainian: true, PigLatin: true, ChineseSimplified: true,
	ChineseTraditional: true,
}

// Known reports whether l is one of the language tokens the API accepts.
func (l Language) Known() bool {
	return knownLanguages[l]
}

// Unit selects the unit system of the response. "us" is the API default.
type Unit string

const (
	UnitAuto Unit = "auto" // Pick units from the requested location
	UnitCA   Unit = "ca"   // SI, wind speed in km/h
	UnitSI   Unit = "si"
	UnitUK2  Unit = "uk2" // SI, distances in miles and wind speed in mph
	UnitUS   Unit = "us"  // Imperial
)

// Icon is the machine-readable weather summary of a datapoint or datablock.
type Icon string

const (
	IconClearDay          Icon = "clear-day"
	IconClearNight        Icon = "clear-night"
	IconCloudy            Icon = "cloudy"
	IconFog               Icon = "fog"
	IconHail              Icon = "hail"
	IconPartlyCloudyDay   Icon = "partly-cloudy-day"
	IconPartlyCloudyNight Icon = "partly-cloudy-night"
	IconRain              Icon = "rain"
	IconSleet             Icon = "sleet"
	IconSnow              Icon = "snow"
	IconThunderstorm      Icon = "thunderstorm"
	IconTornado           Icon = "tornado"
	IconWind              Icon = "wind"
)

var knownIcons = map[Icon]bool{
	IconClearDay: true, IconClearNight: true, IconCloudy: true, IconFog: true,
	IconHail: true, IconPartlyCloudyDay: true, IconPartlyCloudyNight: true,
	IconRain: true, IconSleet: true, IconSnow: true, IconThunderstorm: true,
	IconTornado: true, IconWind: true,
}

// UnmarshalJSON accepts only the documented icon tokens.
func (i *Icon) UnmarshalJSON(data []byte) error {
	s, err := decodeToken(data, "icon")
	if err != nil {
		return err
	}
	if !knownIcons[Icon(s)] {
		return &DecodeError{Description: "unknown icon", Value: cloneRaw(data)}
	}
	*i = Icon(s)
	return nil
}

// PrecipitationType is the kind of precipitation at a datapoint.
type PrecipitationType string

const (
	PrecipitationRain  PrecipitationType = "rain"
	PrecipitationSleet PrecipitationType = "sleet"
	PrecipitationSnow  PrecipitationType = "snow"
)

// UnmarshalJSON accepts only the documented precipitation tokens.
func (p *PrecipitationType) UnmarshalJSON(data []byte) error {
	s, err := decodeToken(data, "precipitation type")
	if err != nil {
		return err
	}
	switch v := PrecipitationType(s); v {
	case PrecipitationRain, PrecipitationSleet, PrecipitationSnow:
		*p = v
		return nil
	}
	return &DecodeError{Description: "unknown precipitation type", Value: cloneRaw(data)}
}

// Severity of a weather alert.
type Severity string

const (
	SeverityAdvisory Severity = "advisory" // Be aware of potentially severe weather
	SeverityWatch    Severity = "watch"    // Prepare for potentially severe weather
	SeverityWarning  Severity = "warning"  // Take immediate action
)

// UnmarshalJSON accepts only the documented severity tokens.
func (s *Severity) UnmarshalJSON(data []byte) error {
	tok, err := decodeToken(data, "severity")
	if err != nil {
		return err
	}
	switch v := Severity(tok); v {
	case SeverityAdvisory, SeverityWatch, SeverityWarning:
		*s = v
		return nil
	}
	return &DecodeError{Description: "unknown severity", Value: cloneRaw(data)}
}

// decodeToken reads a JSON string token, reporting any other JSON type as a DecodeError.
func decodeToken(data []byte, what string) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", &DecodeError{Description: "expected string for " + what, Value: cloneRaw(data)}
	}
	return s, nil
}

func cloneRaw(data []byte) json.RawMessage {
	return append(json.RawMessage(nil), data...)
}
