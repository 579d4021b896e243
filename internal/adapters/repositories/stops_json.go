package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"trip-route-engine/internal/domain"
)

type StopSeed struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Type     string `json:"type"`
	Order    int    `json:"order"`
}

type TripSeed struct {
	TripID string     `json:"trip_id"`
	Stops  []StopSeed `json:"stops"`
}

// Read a trip itinerary exported by the editor from a JSON file.
// Dates are accepted as RFC3339 timestamps or plain YYYY-MM-DD.
func LoadTripJSON(jsonPath string) (string, []domain.Stop, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", nil, fmt.Errorf("load trip: read %q: %w", jsonPath, err)
	}

	var data TripSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return "", nil, fmt.Errorf("load trip: parse json: %w", err)
	}

	stops := make([]domain.Stop, 0, len(data.Stops))
	seen := make(map[string]struct{}, len(data.Stops))
	for i, item := range data.Stops {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return "", nil, fmt.Errorf("load trip: stop at index %d: id cannot be empty", i+1)
		}
		if _, ok := seen[id]; ok {
			return "", nil, fmt.Errorf("load trip: duplicate stop id %q", id)
		}
		seen[id] = struct{}{}

		date, err := domain.ParseStopDate(item.Date)
		if err != nil {
			return "", nil, fmt.Errorf("load trip: stop %q: %w", id, err)
		}

		t, err := domain.ParseStopType(item.Type)
		if err != nil {
			return "", nil, fmt.Errorf("load trip: stop %q: %w", id, err)
		}

		stops = append(stops, domain.Stop{
			ID:           id,
			Date:         date,
			LocationText: item.Location,
			Type:         t,
			Order:        item.Order,
		})
	}

	return strings.TrimSpace(data.TripID), stops, nil
}
