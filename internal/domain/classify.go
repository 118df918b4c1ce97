package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Classification is the normalizer's output for one source record.
type Classification struct {
	Category    Category
	Subcategory string
	// Fallback reports that no rule matched and the default was used.
	Fallback bool
}

type govRule struct {
	match       string
	category    Category
	subcategory string
}

// govRules is evaluated top to bottom; the first substring match wins.
// "accident" must precede "breakdown" so "Vehicle breakdown due to accident"
// is an accident.
var govRules = []govRule{
	{match: "accident", category: CategoryAccident, subcategory: "ACCIDENT_MAJOR"},
	{match: "roadwork", category: CategoryConstruction, subcategory: "CONSTRUCTION"},
	{match: "breakdown", category: CategoryHazard, subcategory: "HAZARD_ON_SHOULDER_CAR_STOPPED"},
	{match: "weather", category: CategoryWeatherHazard, subcategory: "HAZARD_WEATHER"},
	{match: "heavy traffic", category: CategoryJam, subcategory: "JAM_HEAVY_TRAFFIC"},
}

// ClassifyGovType maps a free-text government incident type to the unified
// taxonomy. It never fails: unmatched text becomes a generic on-road hazard.
func ClassifyGovType(text string) Classification {
	t := strings.ToLower(text)
	for _, r := range govRules {
		if strings.Contains(t, r.match) {
			return Classification{Category: r.category, Subcategory: r.subcategory}
		}
	}
	return Classification{Category: CategoryHazard, Subcategory: "HAZARD_ON_ROAD", Fallback: true}
}

// ClassifyPartner maps the partner feed's enumerated type/subtype fields.
// The subtype is kept verbatim; unknown types fall back to HAZARD.
func ClassifyPartner(typ, subtype string) Classification {
	c, ok := ParseCategory(typ)
	if !ok {
		return Classification{Category: CategoryHazard, Subcategory: subtype, Fallback: true}
	}
	return Classification{Category: c, Subcategory: subtype}
}

// ParseCategory accepts the partner spelling (WEATHERHAZARD) as well as the
// unified one.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACCIDENT":
		return CategoryAccident, true
	case "JAM":
		return CategoryJam, true
	case "HAZARD":
		return CategoryHazard, true
	case "WEATHERHAZARD", "WEATHER_HAZARD":
		return CategoryWeatherHazard, true
	case "CONSTRUCTION":
		return CategoryConstruction, true
	case "ROAD_CLOSED":
		return CategoryRoadClosed, true
	default:
		return "", false
	}
}

var subtypeLabels = map[string]string{
	"ACCIDENT_MINOR":                 "Minor Accident",
	"ACCIDENT_MAJOR":                 "Major Accident",
	"JAM_MODERATE_TRAFFIC":           "Moderate Traffic",
	"JAM_HEAVY_TRAFFIC":              "Heavy Traffic",
	"JAM_STAND_STILL_TRAFFIC":        "Standstill Traffic",
	"JAM_LIGHT_TRAFFIC":              "Light Traffic",
	"HAZARD_ON_ROAD":                 "Object on Road",
	"HAZARD_ON_ROAD_CONSTRUCTION":    "Construction Hazard",
	"HAZARD_ON_SHOULDER":             "Vehicle on Shoulder",
	"HAZARD_WEATHER":                 "Weather Hazard",
	"HAZARD_ON_ROAD_POT_HOLE":        "Pothole",
	"HAZARD_ON_ROAD_ROAD_KILL":       "Roadkill",
	"HAZARD_ON_SHOULDER_CAR_STOPPED": "Car Stopped",
	"HAZARD_ON_SHOULDER_ANIMALS":     "Animals on Shoulder",
	"HAZARD_WEATHER_FOG":             "Fog",
	"HAZARD_WEATHER_HAIL":            "Hail",
	"HAZARD_WEATHER_HEAVY_RAIN":      "Heavy Rain",
	"HAZARD_WEATHER_HEAVY_SNOW":      "Heavy Snow",
	"HAZARD_WEATHER_FLOOD":           "Flood",
	"HAZARD_WEATHER_MONSOON":         "Monsoon",
	"HAZARD_WEATHER_TORNADO":         "Tornado",
	"HAZARD_WEATHER_HEAT_WAVE":       "Heat Wave",
	"HAZARD_WEATHER_HURRICANE":       "Hurricane",
	"HAZARD_WEATHER_FREEZING_RAIN":   "Freezing Rain",
	"ROAD_CLOSED_HAZARD":             "Closed due to Hazard",
	"ROAD_CLOSED_CONSTRUCTION":       "Closed due to Construction",
	"ROAD_CLOSED_EVENT":              "Closed due to Event",
}

// SubtypeLabel returns a human-readable label for a subtype code, or the raw
// code unmodified when it is not recognized.
func SubtypeLabel(code string) string {
	if label, ok := subtypeLabels[code]; ok {
		return label
	}
	return code
}

// DeriveID produces a stable id for feeds without a native identifier by
// hashing a descriptive text field. Identical text collapses to one id.
func DeriveID(sourceID, text string) string {
	hash := sha256.Sum256([]byte(text))
	short := hex.EncodeToString(hash[:8])
	if sourceID == "" {
		return short
	}
	return sourceID + "-" + short
}
