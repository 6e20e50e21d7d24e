package resolver

import (
	"context"
	"net/url"
	"strconv"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

type assetDTO struct {
	GUID        string            `json:"guid"`
	HistoryID   string            `json:"historyId"`
	Name        string            `json:"name"`
	Identifiers map[string]string `json:"identifiers"`
	Groups      []string          `json:"groups"`
}

func (d assetDTO) asset() domain.Asset {
	return domain.Asset{
		GUID:        d.GUID,
		HistoryID:   d.HistoryID,
		Name:        d.Name,
		Identifiers: d.Identifiers,
		Groups:      d.Groups,
	}
}

func assets(dtos []assetDTO) []domain.Asset {
	out := make([]domain.Asset, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.asset())
	}
	return out
}

// Assets resolves vessels and asset-group membership.
type Assets struct {
	client *Client
}

func NewAssets(client *Client) *Assets {
	return &Assets{client: client}
}

// GroupMembers returns one page of the members of groupGUID. Pages are 1-based.
func (a *Assets) GroupMembers(ctx context.Context, groupGUID string, page, pageSize int) ([]domain.Asset, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(pageSize))

	var dtos []assetDTO
	if err := a.client.getJSON(ctx, "groups/"+url.PathEscape(groupGUID)+"/members", query, domain.NotFound("asset group", groupGUID), &dtos); err != nil {
		return nil, err
	}
	return assets(dtos), nil
}

// AssetsByGUID returns the known assets among guids. Unknown guids are omitted.
func (a *Assets) AssetsByGUID(ctx context.Context, guids []string) ([]domain.Asset, error) {
	if len(guids) == 0 {
		return []domain.Asset{}, nil
	}
	query := url.Values{"guid": guids}

	var dtos []assetDTO
	if err := a.client.getJSON(ctx, "assets", query, domain.NotFound("assets", guids), &dtos); err != nil {
		return nil, err
	}
	return assets(dtos), nil
}

func (a *Assets) AssetByHistoryID(ctx context.Context, historyID string) (domain.Asset, error) {
	var dto assetDTO
	if err := a.client.getJSON(ctx, "assets/history/"+url.PathEscape(historyID), nil, domain.NotFound("asset history", historyID), &dto); err != nil {
		return domain.Asset{}, err
	}
	return dto.asset(), nil
}
