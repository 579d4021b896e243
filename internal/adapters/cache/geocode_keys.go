package cache

import (
	"fmt"
	"trip-route-engine/internal/domain"
)

// geocodeLookup groups requested location texts by their stored key, so a
// text that differs from a stored row only in whitespace still hits it.
type geocodeLookup struct {
	keys      []string
	requested map[string][]string
}

func newGeocodeLookup(texts []string) geocodeLookup {
	l := geocodeLookup{requested: make(map[string][]string, len(texts))}
	for _, text := range texts {
		key := domain.GeocodeKey(text)
		if key == "" {
			continue
		}
		if _, ok := l.requested[key]; !ok {
			l.keys = append(l.keys, key)
		}
		l.requested[key] = append(l.requested[key], text)
	}
	return l
}

// fill records c under every requested spelling of the stored key.
func (l geocodeLookup) fill(out map[string]domain.Coordinates, key string, c domain.Coordinates) {
	for _, text := range l.requested[key] {
		out[text] = c
	}
}

// geocodeRows validates results and keys them the way they are stored.
func geocodeRows(results map[string]domain.Coordinates) (map[string]domain.Coordinates, error) {
	rows := make(map[string]domain.Coordinates, len(results))
	for text, c := range results {
		key := domain.GeocodeKey(text)
		if key == "" {
			return nil, fmt.Errorf("empty query key")
		}
		if !c.Valid() {
			return nil, fmt.Errorf("query=%q: invalid coordinates %+v", key, c)
		}
		rows[key] = c
	}
	return rows, nil
}
