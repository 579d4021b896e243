package dto

type GeocodeResponse struct {
	Query    string   `json:"query"`
	Resolved bool     `json:"resolved"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}
