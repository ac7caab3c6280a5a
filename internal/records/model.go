package records

import "time"

// Project is an archive entry keyed by its externally supplied number.
// Everything beyond number and name is optional descriptive data.
type Project struct {
	ID             int64     `json:"id"`
	Number         string    `json:"number"`
	Name           string    `json:"name"`
	Status         *string   `json:"status,omitempty"`
	ClientID       *int64    `json:"client_id,omitempty"`
	StartYear      *int      `json:"start_year,omitempty"`
	CompletionYear *int      `json:"completion_year,omitempty"`
	Address        *string   `json:"address,omitempty"`
	HeightM        *float64  `json:"height_m,omitempty"`
	FloorAreaSqm   *float64  `json:"floor_area_sqm,omitempty"`
	Units          *int      `json:"units,omitempty"`
	ParkingSpaces  *int      `json:"parking_spaces,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectUpsert is a partial record. Nil fields are "not provided" and
// never overwrite what a previous call has set.
type ProjectUpsert struct {
	Number         string   `json:"number"`
	Name           *string  `json:"name,omitempty"`
	Status         *string  `json:"status,omitempty"`
	ClientID       *int64   `json:"client_id,omitempty"`
	StartYear      *int     `json:"start_year,omitempty"`
	CompletionYear *int     `json:"completion_year,omitempty"`
	Address        *string  `json:"address,omitempty"`
	HeightM        *float64 `json:"height_m,omitempty"`
	FloorAreaSqm   *float64 `json:"floor_area_sqm,omitempty"`
	Units          *int     `json:"units,omitempty"`
	ParkingSpaces  *int     `json:"parking_spaces,omitempty"`
}

// assignments lists the columns present in the partial record, in schema
// order, paired with their values.
func (u ProjectUpsert) assignments() ([]string, []any) {
	var cols []string
	var vals []any

	add := func(col string, present bool, val any) {
		if present {
			cols = append(cols, col)
			vals = append(vals, val)
		}
	}

	add("name", u.Name != nil, u.Name)
	add("status", u.Status != nil, u.Status)
	add("client_id", u.ClientID != nil, u.ClientID)
	add("start_year", u.StartYear != nil, u.StartYear)
	add("completion_year", u.CompletionYear != nil, u.CompletionYear)
	add("address", u.Address != nil, u.Address)
	add("height_m", u.HeightM != nil, u.HeightM)
	add("floor_area_sqm", u.FloorAreaSqm != nil, u.FloorAreaSqm)
	add("units", u.Units != nil, u.Units)
	add("parking_spaces", u.ParkingSpaces != nil, u.ParkingSpaces)

	return cols, vals
}

// Client has nothing but its natural key and an opaque id.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
