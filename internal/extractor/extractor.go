// Package extractor turns inbound messages into commands. Each source tag
// (manual, scheduled, activity) has its own Extractor.
package extractor

import (
	"context"
	"sort"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/command"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

type Extractor interface {
	// ExtractCommands parses representation and returns the commands it implies.
	// Malformed input yields an error wrapping domain.ErrMalformed.
	ExtractCommands(ctx context.Context, representation string, sender *domain.Sender, correlationID string, receptionTime time.Time) ([]command.Command, error)
}

type SubscriptionFinder interface {
	FindSubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error)
}

type AssetResolver interface {
	// GroupMembers returns one page of the members of an asset group.
	GroupMembers(ctx context.Context, groupGUID string, page, pageSize int) ([]domain.Asset, error)
	AssetsByGUID(ctx context.Context, guids []string) ([]domain.Asset, error)
	AssetByHistoryID(ctx context.Context, historyID string) (domain.Asset, error)
}

type AreaResolver interface {
	AreasAt(ctx context.Context, pos domain.Position, at time.Time) ([]domain.Area, error)
}

// Registry maps source tags to extractors.
type Registry struct {
	extractors map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// Register binds source to e, replacing any previous binding.
func (r *Registry) Register(source string, e Extractor) *Registry {
	r.extractors[source] = e
	return r
}

func (r *Registry) Lookup(source string) (Extractor, bool) {
	e, ok := r.extractors[source]
	return e, ok
}

// Sources returns the registered source tags in sorted order.
func (r *Registry) Sources() []string {
	out := make([]string, 0, len(r.extractors))
	for s := range r.extractors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// triggeringData builds the correlation data shared by every source.
func triggeringData(sub domain.Subscription, asset domain.Asset) map[string]string {
	data := map[string]string{domain.DataKeyConnectID: asset.GUID}
	for _, scheme := range sub.Output.VesselIDs {
		if v, ok := asset.Identifiers[scheme]; ok && v != "" {
			data[scheme] = v
		}
	}
	return data
}
