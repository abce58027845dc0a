package catalog

// Item is a counted inventory item. Quantities in the ledger are expressed in
// the item's base unit.
type Item struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	BaseUnitID        string   `json:"base_unit_id"`
	CaseSize          *float64 `json:"case_size"`
	AllowPartials     bool     `json:"allow_partials"`
	ParLevel          *float64 `json:"par_level"`
	LowThreshold      *float64 `json:"low_threshold"`
	DefaultLocationID *string  `json:"default_location_id"`
	Active            bool     `json:"active"`
}

// Unit is a unit of measure.
type Unit struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Location is a storage location inside the store.
type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Settings identifies the store this deployment serves.
type Settings struct {
	StoreNumber  string `json:"store_number"`
	StoreLabel   string `json:"store_label"`
	Intersection string `json:"intersection"`
}

// DefaultSettings is returned when no settings row has been configured yet.
var DefaultSettings = Settings{
	StoreNumber:  "3729",
	StoreLabel:   "Sonic Drive-In #3729",
	Intersection: "Gilbert & Baseline",
}
