// =============================================================================
// SIRENE Loader - Field Mapper
// =============================================================================
//
// This module turns a raw SIRENE CSV row into a Record. It is a pure
// transformation apart from diagnostic logging:
//
//   1. Scalar columns are copied verbatim through the scalarFields table
//   2. Date columns are parsed with the layout bound to each of them
//   3. The workforce count is parsed as an integer ("NN" means unknown)
//   4. The seasonal flag is coerced to a boolean
//   5. SIRET is derived from SIREN and NIC; a row missing either is rejected
//   6. A geolocation is composed when both coordinates are present
//
// Coercion failures never reject a row: the field is left unset and a
// warning is logged.
//
// =============================================================================

package company

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMissingIdentifier is returned when SIREN or NIC is empty.
var ErrMissingIdentifier = errors.New("missing siren or nic")

// =============================================================================
// COLUMN NAMES
// =============================================================================

// Columns of the INSEE layout read by the mapper and the update processor.
const (
	ColSiren     = "SIREN"
	ColNic       = "NIC"
	ColUpdate    = "VMAJ"
	ColDateMaj   = "DATEMAJ"
	ColWorkforce = "EFENCENT"
	ColSeasonal  = "SAISONAT"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
)

// =============================================================================
// MAPPING TABLES
// =============================================================================

// scalarField binds a raw column to a string field of the record.
type scalarField struct {
	column string
	set    func(r *Record, v string)
}

// scalarFields are copied verbatim. Empty values stay unset.
var scalarFields = []scalarField{
	{"NOMEN_LONG", func(r *Record, v string) { r.Name = v }},
	{"ENSEIGNE", func(r *Record, v string) { r.Sign = v }},
	{"CATEGORIE", func(r *Record, v string) { r.Category = v }},
	{"NJ", func(r *Record, v string) { r.LegalForm = v }},
	{"LIBNJ", func(r *Record, v string) { r.LegalFormLabel = v }},
	{"APEN700", func(r *Record, v string) { r.APE = v }},
	{"LIBAPEN", func(r *Record, v string) { r.APELabel = v }},
	{"RPET", func(r *Record, v string) { r.Region = v }},
	{"DEPET", func(r *Record, v string) { r.Departement = v }},
	{"COMET", func(r *Record, v string) { r.Commune = v }},
	{"LIBCOM", func(r *Record, v string) { r.City = v }},
	{"CODPOS", func(r *Record, v string) { r.PostalCode = v }},
	{"EPCI", func(r *Record, v string) { r.EPCI = v }},
	{"TEFEN", func(r *Record, v string) { r.WorkforceBracket = v }},
	{ColSeasonal, func(r *Record, v string) { r.Seasonality = v }},
	{"ACTISURF", func(r *Record, v string) { r.ShopType = v }},
	{"RNA", func(r *Record, v string) { r.RNA = v }},
	{"SIEGE", func(r *Record, v string) { r.Headquarters = v }},
}

// Layouts for the date columns, named after their strftime counterparts.
const (
	LayoutYMD = "20060102" // %Y%m%d
	LayoutYM  = "200601"   // %Y%m
	LayoutY   = "2006"     // %Y
)

// dateField binds a raw column to a date field and its layout.
type dateField struct {
	column string
	field  string
	layout string
	set    func(r *Record, d *Date)
}

var dateFields = []dateField{
	{"DDEBACT", "activity_start", LayoutYMD, func(r *Record, d *Date) { r.ActivityStart = d }},
	{ColDateMaj, "last_insee_update", LayoutYMD, func(r *Record, d *Date) { r.LastINSEEUpdate = d }},
	{"AMINTREN", "creation_month", LayoutYM, func(r *Record, d *Date) { r.CreationMonth = d }},
	{"DEFEN", "workforce_date", LayoutY, func(r *Record, d *Date) { r.WorkforceDate = d }},
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize maps a raw row to a Record.
//
// PARAMETERS:
//   - raw: The CSV row. It is retained as the record's CSV payload.
//   - now: The processing time, stored as last_update.
//   - log: Receives one warning per coercion failure. Nil uses slog.Default().
//
// RETURNS:
//   - The record.
//   - ErrMissingIdentifier (wrapped) if SIREN or NIC is empty.
func Normalize(raw Row, now time.Time, log *slog.Logger) (*Record, error) {
	siren := strings.TrimSpace(raw[ColSiren])
	nic := strings.TrimSpace(raw[ColNic])
	if siren == "" || nic == "" {
		return nil, fmt.Errorf("%w (siren=%q nic=%q)", ErrMissingIdentifier, siren, nic)
	}

	rec := &Record{
		Siren:      siren,
		Nic:        nic,
		Siret:      siren + nic,
		LastUpdate: now,
		CSV:        raw,
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("siret", rec.Siret)

	for _, f := range scalarFields {
		if v := raw[f.column]; v != "" {
			f.set(rec, v)
		}
	}

	for _, f := range dateFields {
		v := raw[f.column]
		if v == "" {
			continue
		}
		d, err := ParseDate(v, f.layout)
		if err != nil {
			log.Warn("invalid date", "field", f.field, "column", f.column, "value", v, "error", err)
			continue
		}
		f.set(rec, d)
	}

	if n, err := ParseWorkforce(raw[ColWorkforce]); err != nil {
		log.Warn("invalid workforce", "column", ColWorkforce, "value", raw[ColWorkforce], "error", err)
	} else {
		rec.Workforce = n
	}

	if b, err := ParseBoolean(raw[ColSeasonal]); err != nil {
		log.Warn("invalid boolean", "field", "seasonal", "column", ColSeasonal, "value", raw[ColSeasonal], "error", err)
	} else {
		rec.Seasonal = b
	}

	if p, err := ParseLocation(raw[ColLatitude], raw[ColLongitude]); err != nil {
		log.Warn("invalid coordinates", "latitude", raw[ColLatitude], "longitude", raw[ColLongitude], "error", err)
	} else {
		rec.Location = p
	}

	return rec, nil
}

// =============================================================================
// COERCION HELPERS
// =============================================================================

// ParseDate parses v with layout. The input length must match the layout
// exactly, so "2021" is rejected for LayoutYMD.
func ParseDate(v, layout string) (*Date, error) {
	v = strings.TrimSpace(v)
	if len(v) != len(layout) {
		return nil, fmt.Errorf("expected %d characters, got %d", len(layout), len(v))
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return nil, err
	}
	return &Date{Time: t}, nil
}

// ParseWorkforce parses the workforce count. "" and "NN" (not filled by
// INSEE) are unset without error.
func ParseWorkforce(v string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "NN" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", v)
	}
	return &n, nil
}

// ParseBoolean applies the boolean policy shared by all boolean columns.
//
//   true:  S (saisonnier), O (oui), 1, true, oui
//   false: P (permanent), N (non), 0, false, non
//
// Matching is case-insensitive. "" is unset without error.
func ParseBoolean(v string) (*bool, error) {
	var b bool
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return nil, nil
	case "s", "o", "1", "true", "oui":
		b = true
	case "p", "n", "0", "false", "non":
		b = false
	default:
		return nil, fmt.Errorf("unrecognized boolean %q", v)
	}
	return &b, nil
}

// ParseLocation composes a GeoPoint when both coordinates are present.
// A single missing coordinate yields no location and no error.
func ParseLocation(lat, lon string) (*GeoPoint, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if !finite(la) || !finite(lo) {
		return nil, fmt.Errorf("not a finite coordinate: %s,%s", lat, lon)
	}
	if la < -90 || la > 90 || lo < -180 || lo > 180 {
		return nil, fmt.Errorf("out of range: %s,%s", lat, lon)
	}
	return &GeoPoint{Lat: la, Lon: lo}, nil
}

// finite reports whether f is neither NaN nor infinite. JSON cannot encode
// either.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// PreviousDay returns the YYYYMMDD date one calendar day before v.
func PreviousDay(v string) (string, error) {
	d, err := ParseDate(v, LayoutYMD)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, -1).Format(LayoutYMD), nil
}
