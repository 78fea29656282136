package models

// ValidCoordinates reports whether (lat, lng) is a plausible WGS84 pair.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// StartGroupJourneyRequest is the body of POST /group-journey/start.
type StartGroupJourneyRequest struct {
	GroupID      string  `json:"group_id"`
	Title        string  `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	EndLatitude  float64 `json:"end_latitude"`
	EndLongitude float64 `json:"end_longitude"`
}

// StartInstanceRequest is the body of
// POST /group-journey/:id/start-my-instance.
type StartInstanceRequest struct {
	StartLatitude  float64 `json:"start_latitude"`
	StartLongitude float64 `json:"start_longitude"`
	StartAddress   *string `json:"start_address,omitempty"`
	// Force auto-completes an active solo journey instead of failing
	// with a conflict.
	Force bool `json:"force,omitempty"`
}

// LocationUpdateRequest is the body of
// POST /group-journey/instance/:id/location.
type LocationUpdateRequest struct {
	Latitude        float64     `json:"latitude"`
	Longitude       float64     `json:"longitude"`
	DistanceDeltaKm float64     `json:"distance_delta_km"`
	SpeedKmh        float64     `json:"speed_kmh"`
	RoutePoint      *RoutePoint `json:"route_point,omitempty"`
}

// CompleteInstanceRequest is the body of
// POST /group-journey/instance/:id/complete.
type CompleteInstanceRequest struct {
	EndLatitude  *float64 `json:"end_latitude,omitempty"`
	EndLongitude *float64 `json:"end_longitude,omitempty"`
}

// PostRideEventRequest is the body of POST /group-journey/:id/events and of
// the socket post-event frame.
type PostRideEventRequest struct {
	Type       RideEventType `json:"type"`
	InstanceID *string       `json:"instance_id,omitempty"`
	Message    *string       `json:"message,omitempty"`
	Latitude   *float64      `json:"latitude,omitempty"`
	Longitude  *float64      `json:"longitude,omitempty"`
	MediaRef   *string       `json:"media_ref,omitempty"`
	Data       JSONMap       `json:"data,omitempty"`
}
