// Package domain models traffic incidents reported by partner and government
// feeds and the rules that normalize them into one taxonomy.
//
// # Data Sources
//
// Partner feed: a JSON document with an "alerts" array. Each alert carries a
// native "uuid", an enumerated "type" (ACCIDENT, JAM, HAZARD, WEATHERHAZARD,
// CONSTRUCTION, ROAD_CLOSED) and a finer "subtype" code such as
// ACCIDENT_MAJOR or HAZARD_ON_SHOULDER_CAR_STOPPED. Coordinates are published
// as {x: longitude, y: latitude}; "pubMillis" is the report time in epoch
// milliseconds.
//
// Government open-data feed: a JSON document with a "value" array of
// {Type, Latitude, Longitude, Message}. There is no identifier and no
// timestamp. Type is free text ("Accident", "Roadwork", "Vehicle breakdown",
// "Heavy Traffic", ...).
//
// # Classification
//
// Free-text types are classified by [ClassifyGovType]: case-insensitive
// substring rules evaluated in order, first match wins:
//
//	accident       → ACCIDENT        / ACCIDENT_MAJOR
//	roadwork       → CONSTRUCTION    / CONSTRUCTION
//	breakdown      → HAZARD          / HAZARD_ON_SHOULDER_CAR_STOPPED
//	weather        → WEATHER_HAZARD  / HAZARD_WEATHER
//	heavy traffic  → JAM             / JAM_HEAVY_TRAFFIC
//	(anything else)→ HAZARD          / HAZARD_ON_ROAD   (fallback)
//
// Structured partner types are mapped by [ClassifyPartner]. Unknown subtype
// codes are kept verbatim and [SubtypeLabel] displays them unmodified.
//
// # ID Generation
//
// Partner incidents use the feed's uuid. Government incidents use
// [DeriveID]: the source id followed by a truncated SHA-256 of the message
// text. Repeated polls of an unchanged message yield the same id; two distinct
// incidents with identical text share one id.
//
// # Timestamps
//
// Government incidents are stamped with the ingestion time from the package
// clock (see [SetClock]), so they look fresh on every poll and rely on
// deduplication for suppression.
package domain
