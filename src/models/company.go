package models

// MCompany is one entry of the listed-company directory.
type MCompany struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"` // e.g., "HAYL.N0000"
}
