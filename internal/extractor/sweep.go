package extractor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/command"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/paging"
)

// SweepExtractor resolves one page of a subscription's asset population and
// triggers the subscription once per asset. It serves both the manual and
// the scheduled source.
type SweepExtractor struct {
	source    string
	subs      SubscriptionFinder
	assets    AssetResolver
	triggerer command.Triggerer
	sender    paging.Sender
}

func NewSweepExtractor(source string, subs SubscriptionFinder, assets AssetResolver, triggerer command.Triggerer, sender paging.Sender) *SweepExtractor {
	return &SweepExtractor{
		source:    source,
		subs:      subs,
		assets:    assets,
		triggerer: triggerer,
		sender:    sender,
	}
}

func (e *SweepExtractor) ExtractCommands(ctx context.Context, representation string, sender *domain.Sender, correlationID string, receptionTime time.Time) ([]command.Command, error) {
	c, err := paging.Decode(representation)
	if err != nil {
		return nil, err
	}

	sub, err := e.subs.FindSubscriptionByID(ctx, c.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription %d: %w", c.SubscriptionID, err)
	}
	if !sub.Active {
		log.Printf("extractor: %s sweep skipped, subscription=%d inactive", e.source, sub.ID)
		return nil, nil
	}

	assets, count, err := e.page(ctx, sub, c)
	if err != nil {
		return nil, err
	}

	cmds := make([]command.Command, 0, len(assets)+1)
	if !c.IsLastPage(count) {
		cmds = append(cmds, &command.NextPage{
			Sender:        e.sender,
			Source:        e.source,
			Current:       c,
			CorrelationID: correlationID,
			ReceivedAt:    receptionTime,
		})
	}

	dupKeys := []string{domain.DataKeyConnectID}
	withOccurrence := !sub.Output.HasFixedQueryPeriod()
	if withOccurrence {
		dupKeys = append(dupKeys, domain.DataKeyOccurrence)
	}

	for _, asset := range assets {
		data := triggeringData(sub, asset)
		if withOccurrence {
			data[domain.DataKeyOccurrence] = receptionTime.UTC().Format(time.RFC3339)
		}
		cmds = append(cmds, &command.Trigger{
			Triggerer: e.triggerer,
			Triggering: domain.TriggeredSubscription{
				SubscriptionID: sub.ID,
				Source:         e.source,
				EffectiveFrom:  receptionTime,
				Data:           data,
			},
			DuplicateKeys: dupKeys,
		})
	}
	return cmds, nil
}

// page returns the resolved assets of page c and the raw page size used for
// the termination rule.
func (e *SweepExtractor) page(ctx context.Context, sub domain.Subscription, c paging.Continuation) ([]domain.Asset, int, error) {
	if c.IsGroup {
		members, err := e.assets.GroupMembers(ctx, c.AssetGroupOrKeyword, c.PageNumber, c.PageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve group %s page %d: %w", c.AssetGroupOrKeyword, c.PageNumber, err)
		}
		return members, len(members), nil
	}

	guids := PageOf(OwnAssetGUIDs(sub), c)
	if len(guids) == 0 {
		return nil, 0, nil
	}
	assets, err := e.assets.AssetsByGUID(ctx, guids)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve assets of subscription %d page %d: %w", sub.ID, c.PageNumber, err)
	}
	return assets, len(guids), nil
}

// OwnAssetGUIDs returns the GUIDs of the subscription's own assets sorted ascending.
func OwnAssetGUIDs(sub domain.Subscription) []string {
	guids := make([]string, 0, len(sub.Assets))
	for _, a := range sub.Assets {
		guids = append(guids, a.GUID)
	}
	sort.Strings(guids)
	return guids
}

// PageOf slices the page described by c out of items.
func PageOf[T any](items []T, c paging.Continuation) []T {
	start := c.Offset()
	if start < 0 || start >= len(items) {
		return nil
	}
	end := len(items)
	if c.PageSize < end-start {
		end = start + c.PageSize
	}
	return items[start:end]
}
