package domain

import "fmt"

// Address is the typed shape of the jsonb address columns. Only the
// street line is mandatory.
type Address struct {
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Validate() error {
	if a.Address == "" {
		return fmt.Errorf("%w: shipping address is required", ErrInvalidOrderRequest)
	}
	return nil
}
