// =============================================================================
// SIRENE Loader - Company Record
// =============================================================================
//
// A Record is the document stored in the search index for one establishment.
// It is keyed by SIRET, the concatenation of SIREN (the legal unit, 9 digits)
// and NIC (the establishment within it, 5 digits).
//
// Optional values are pointers or omitempty strings: "unset" never reaches
// the index as a zero value.
//
// =============================================================================

package company

import (
	"time"
)

// Row is a raw CSV row keyed by column name. Absent keys read as "".
type Row map[string]string

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || len(s) < 2 {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s[1:len(s)-1])
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// GeoPoint is the canonical geolocation form, mapped as an Elasticsearch geo_point.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is a normalized SIRENE establishment.
type Record struct {
	// Identity.
	Siret string `json:"siret"`
	Siren string `json:"siren"`
	Nic   string `json:"nic"`

	// Copied verbatim from the raw columns.
	Name             string `json:"name,omitempty"`
	Sign             string `json:"sign,omitempty"`
	Category         string `json:"category,omitempty"`
	LegalForm        string `json:"legal_form,omitempty"`
	LegalFormLabel   string `json:"legal_form_label,omitempty"`
	APE              string `json:"ape,omitempty"`
	APELabel         string `json:"ape_label,omitempty"`
	Region           string `json:"region,omitempty"`
	Departement      string `json:"departement,omitempty"`
	Commune          string `json:"commune,omitempty"`
	City             string `json:"city,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	EPCI             string `json:"epci,omitempty"`
	WorkforceBracket string `json:"workforce_bracket,omitempty"`
	Seasonality      string `json:"seasonality,omitempty"`
	ShopType         string `json:"shop_type,omitempty"`
	RNA              string `json:"rna,omitempty"`
	Headquarters     string `json:"headquarters,omitempty"`

	// Coerced values.
	ActivityStart   *Date `json:"activity_start,omitempty"`
	LastINSEEUpdate *Date `json:"last_insee_update,omitempty"`
	CreationMonth   *Date `json:"creation_month,omitempty"`
	WorkforceDate   *Date `json:"workforce_date,omitempty"`
	Workforce       *int  `json:"workforce,omitempty"`
	Seasonal        *bool `json:"seasonal,omitempty"`

	// Derived.
	Location   *GeoPoint `json:"location,omitempty"`
	LastUpdate time.Time `json:"last_update"`

	// CSV is the raw row, kept for traceability and re-derivation.
	CSV Row `json:"csv"`
}

// ID returns the document identifier.
func (r *Record) ID() string {
	return r.Siret
}
