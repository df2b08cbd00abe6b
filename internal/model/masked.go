package model

import "encoding/json"

// Masked records carry no prices: amounts are written as null so a client
// never reads a hidden price as zero.

func (a HotelAssignment) MarshalJSON() ([]byte, error) {
	type plain HotelAssignment
	if !a.Masked {
		return json.Marshal(plain(a))
	}
	return json.Marshal(struct {
		plain
		Price *Money `json:"price"`
	}{plain: plain(a)})
}

func (d DestinationResult) MarshalJSON() ([]byte, error) {
	type plain DestinationResult
	if !d.Masked {
		return json.Marshal(plain(d))
	}
	return json.Marshal(struct {
		plain
		TotalCost *Money `json:"total_cost"`
	}{plain: plain(d)})
}

func (o ItineraryOption) MarshalJSON() ([]byte, error) {
	type plain ItineraryOption
	if !o.Masked {
		return json.Marshal(plain(o))
	}
	return json.Marshal(struct {
		plain
		TotalCost *Money `json:"total_cost"`
	}{plain: plain(o)})
}
