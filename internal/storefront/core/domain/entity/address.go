package entity

import "strings"

// ShippingAddress is persisted as a JSON blob on the order.
type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Missing returns the names of required fields that are blank.
func (a ShippingAddress) Missing() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
