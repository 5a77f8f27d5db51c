package models

// Location is an immutable coordinate pair plus a human-readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

func NewLocation(lat, lng float64, address string) Location {
	if address == "" {
		address = "Unknown"
	}
	return Location{Latitude: lat, Longitude: lng, Address: address}
}

func (l Location) String() string {
	return l.Address
}
