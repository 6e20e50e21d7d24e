package domain

// Asset is a vessel as resolved from the asset service.
type Asset struct {
	GUID      string
	HistoryID string
	Name      string
	// Identifiers maps a scheme (CFR, IRCS, EXT_MARK, UVI, ICCAT, GFCM) to its value.
	Identifiers map[string]string
	// Groups lists the GUIDs of the asset groups the asset belongs to.
	Groups []string
}

// Position is a WGS84 coordinate.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
