package domain

// Geofence is a closed latitude/longitude bounding box.
type Geofence struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// ScotlandBounds approximates the target geography. Coordinates outside it are
// accepted with a warning.
var ScotlandBounds = Geofence{
	MinLatitude:  54.5,
	MaxLatitude:  61.0,
	MinLongitude: -8.0,
	MaxLongitude: -0.7,
}

// Contains reports whether the point lies inside the box, edges included.
// NaN never lies inside.
func (g Geofence) Contains(lat, lon float64) bool {
	return g.MinLatitude <= lat && lat <= g.MaxLatitude &&
		g.MinLongitude <= lon && lon <= g.MaxLongitude
}
