package types

import "strings"

// ShippingAddress is stored as a jsonb document on the order row.
type ShippingAddress struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// Normalize trims surrounding whitespace from every field.
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		FirstName:  strings.TrimSpace(a.FirstName),
		LastName:   strings.TrimSpace(a.LastName),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// MissingFields lists the json names of blank fields.
func (a ShippingAddress) MissingFields() []string {
	checks := []struct {
		name  string
		value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"address", a.Address},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	var missing []string
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			missing = append(missing, c.name)
		}
	}
	return missing
}
