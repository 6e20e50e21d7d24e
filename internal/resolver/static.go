package resolver

import (
	"context"
	"slices"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

// Static serves a fixed asset population and places every position outside
// all areas. It stands in for the external services when none are configured.
type Static struct {
	assets []domain.Asset
}

func NewStatic(assets ...domain.Asset) *Static {
	return &Static{assets: assets}
}

func (s *Static) GroupMembers(ctx context.Context, groupGUID string, page, pageSize int) ([]domain.Asset, error) {
	var members []domain.Asset
	for _, a := range s.assets {
		if slices.Contains(a.Groups, groupGUID) {
			members = append(members, a)
		}
	}
	if page < 1 || pageSize < 1 {
		return []domain.Asset{}, nil
	}
	from := (page - 1) * pageSize
	if from >= len(members) {
		return []domain.Asset{}, nil
	}
	return members[from:min(from+pageSize, len(members))], nil
}

func (s *Static) AssetsByGUID(ctx context.Context, guids []string) ([]domain.Asset, error) {
	out := []domain.Asset{}
	for _, a := range s.assets {
		if slices.Contains(guids, a.GUID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Static) AssetByHistoryID(ctx context.Context, historyID string) (domain.Asset, error) {
	for _, a := range s.assets {
		if a.HistoryID == historyID {
			return a, nil
		}
	}
	return domain.Asset{}, domain.NotFound("asset history", historyID)
}

func (s *Static) AreasAt(ctx context.Context, pos domain.Position, at time.Time) ([]domain.Area, error) {
	return []domain.Area{}, nil
}
