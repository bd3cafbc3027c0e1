package model

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// RouteCoords is a polyline of [lon, lat] pairs. It is stored as a JSON
// text column; an unreadable blob reads back as an absent route.
type RouteCoords [][2]float64

// Value implements driver.Valuer.
func (r RouteCoords) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal([][2]float64(r))
	if err != nil {
		return nil, eris.Wrap(err, "route: marshal")
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *RouteCoords) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		*r = nil
		return nil
	}
	var coords [][2]float64
	if err := json.Unmarshal(raw, &coords); err != nil {
		*r = nil
		return nil
	}
	*r = coords
	return nil
}
