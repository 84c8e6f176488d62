// Package domain models ISPU air-quality monitoring station data.
//
// # Data Source
//
// Station readings come from the monitoring REST API (see package ispuapi).
// Every response is wrapped in an envelope:
//
//	{"success": true, "data": [...], "error": {"message": "..."}}
//
// The map endpoint (/map/stations) returns one object per station with its
// metadata, the latest ISPU value and the individual pollutant readings.
//
// # Field Conventions
//
// Text fields (name, city, province, address, type) may be missing or empty;
// both mean "unknown" and render as "N/A" in exports. Numbers sent in a text
// field are kept as their literal; other JSON types read as empty. is_active
// accepts booleans, 0/1 and their string forms, and is false otherwise.
//
// Numeric fields are decoded leniently by [Number]: JSON numbers and numeric
// strings are accepted, anything else (null, "UNK", objects) is treated as
// absent. Absent numbers default to 0. A single malformed field never fails
// the whole station array.
//
// The index is sent as "ispu"; "index_value" is accepted as an alias.
//
// # ISPU Classification
//
// Indeks Standar Pencemar Udara is the Indonesian air pollution standard
// index. Values map to five bands, upper bound inclusive:
//
//	  0 -  50  BAIK                #00e400
//	 51 - 100  SEDANG              #0000FF
//	101 - 200  TIDAK SEHAT         #eebb00
//	201 - 300  SANGAT TIDAK SEHAT  #ff0000
//	301 +      BERBAHAYA           #8f3f97
//
// Negative and NaN inputs classify as 0. The classifier never rejects input;
// [Validate] is a separate sanity check that caps plausible values at 1000.
//
// # Exports
//
// Exports are derived at request time from the current snapshot and are never
// stored. See [ToExportRows] and [ToCSV].
package domain
