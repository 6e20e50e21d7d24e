package resolver

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

type areaDTO struct {
	Type string `json:"type"`
	GID  string `json:"gid"`
}

// Spatial resolves the areas containing a position.
type Spatial struct {
	client *Client
}

func NewSpatial(client *Client) *Spatial {
	return &Spatial{client: client}
}

// AreasAt returns every area containing pos at the given instant. A position
// outside every area yields an empty slice.
func (s *Spatial) AreasAt(ctx context.Context, pos domain.Position, at time.Time) ([]domain.Area, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
	query.Set("at", at.UTC().Format(time.RFC3339))

	var dtos []areaDTO
	if err := s.client.getJSON(ctx, "areas", query, domain.NotFound("areas at position", pos), &dtos); err != nil {
		return nil, err
	}

	areas := make([]domain.Area, 0, len(dtos))
	for _, d := range dtos {
		areas = append(areas, domain.Area{Type: domain.AreaType(d.Type), GID: d.GID})
	}
	return areas, nil
}
