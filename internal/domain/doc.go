// Package domain models storm-damage leads built from NOAA Storm Events data.
//
// # Data Source
//
// Events come from the NCEI Storm Events Database "details" files, published
// per year as gzipped CSV at
// https://www.ncei.noaa.gov/pub/data/swdi/stormevents/csvfiles/. Each row is
// one event; the columns this package reads are EVENT_ID, EVENT_TYPE,
// MAGNITUDE, BEGIN_DATE_TIME, BEGIN_LAT, BEGIN_LON, STATE_FIPS and CZ_NAME.
//
// # NOAA Data Conventions
//
// Time format:
//
//	"dd-MON-yy HH:MM:SS", e.g. "28-APR-24 15:10:00". Four-digit years,
//	RFC 3339 and plain "YYYY-MM-DD" dates are also accepted. Unparseable
//	values become the zero time and never earn a recency bonus.
//
// Magnitude encoding:
//
//	Hail magnitude is the stone diameter in inches (1.75 = golf ball).
//	Legacy hundredths encoding (175) is corrected for values ≥ 10 because
//	the largest hail recorded in the US was ~8 inches. Empty or "UNK"
//	magnitudes are zero.
//
// Region codes:
//
//	STATE_FIPS is a numeric state code, sometimes without the leading zero
//	("1" for Alabama). Codes are zero-padded to two digits and resolved
//	through a static table of the 50 states plus DC. Unknown codes resolve
//	to an empty region name.
//
// # Lead Scoring
//
// A lead's score is an additive sum, clamped to [0, 100]:
//
//	Magnitude:  ≥2.0" +50 | ≥1.5" +30 | ≥1.0" +10
//	Value:      ≥$500k +20 | ≥$300k +10 | unknown +10 (flat)
//	Recency:    event began within the last 30 days +15
//
// Priority buckets default to high ≥70, medium ≥40, low otherwise.
//
// # Damage Assessment
//
// [Assess] maps hail size, property value and event age to a probability
// band, a repair cost range (a percentage of property value, ±20%), an
// insurance claim outlook and an urgency tier. It is a pure function of its
// inputs and the supplied "now".
package domain
