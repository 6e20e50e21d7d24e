package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/command"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
)

// ActivityReport is the payload of the activity source.
type ActivityReport struct {
	Units []ReportUnit `json:"units"`
}

// ReportUnit is one reported fishing activity of one vessel.
type ReportUnit struct {
	ReportID        string            `json:"reportId"`
	TripID          string            `json:"tripId,omitempty"`
	AssetHistoryIDs []string          `json:"assetHistoryIds"`
	OccurredAt      time.Time         `json:"occurredAt"`
	Position        *domain.Position  `json:"position,omitempty"`
	Activities      []domain.Activity `json:"activities,omitempty"`
}

// ParseActivityReport decodes and checks an activity report payload.
func ParseActivityReport(representation string) (ActivityReport, error) {
	var report ActivityReport
	dec := json.NewDecoder(strings.NewReader(representation))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&report); err != nil {
		return ActivityReport{}, domain.Malformed("activity report", "%v", err)
	}
	if len(report.Units) == 0 {
		return ActivityReport{}, domain.Malformed("activity report", "no units")
	}
	for i, u := range report.Units {
		if u.ReportID == "" {
			return ActivityReport{}, domain.Malformed("activity report", "unit %d has no report id", i)
		}
	}
	return report, nil
}

type Matcher interface {
	FindTriggeredSubscriptions(ctx context.Context, c matching.Criteria) ([]domain.Subscription, error)
}

// ActivityExtractor triggers subscriptions from fishing activity reports and
// re-evaluates stop conditions of the reporting vessels.
type ActivityExtractor struct {
	matcher   Matcher
	assets    AssetResolver
	areas     AreaResolver
	triggerer command.Triggerer
	stopper   command.StopEvaluator
}

func NewActivityExtractor(matcher Matcher, assets AssetResolver, areas AreaResolver, triggerer command.Triggerer, stopper command.StopEvaluator) *ActivityExtractor {
	return &ActivityExtractor{
		matcher:   matcher,
		assets:    assets,
		areas:     areas,
		triggerer: triggerer,
		stopper:   stopper,
	}
}

func (e *ActivityExtractor) ExtractCommands(ctx context.Context, representation string, sender *domain.Sender, correlationID string, receptionTime time.Time) ([]command.Command, error) {
	report, err := ParseActivityReport(representation)
	if err != nil {
		return nil, err
	}

	var cmds []command.Command
	for i, unit := range report.Units {
		if len(unit.AssetHistoryIDs) != 1 {
			log.Printf("extractor: activity unit skipped report=%s index=%d asset_history_ids=%d", unit.ReportID, i, len(unit.AssetHistoryIDs))
			continue
		}

		unitCmds, err := e.extractUnit(ctx, unit, sender, receptionTime)
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("extractor: activity unit skipped report=%s: %v", unit.ReportID, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", unit.ReportID, err)
		}
		cmds = append(cmds, unitCmds...)
	}
	return cmds, nil
}

func (e *ActivityExtractor) extractUnit(ctx context.Context, unit ReportUnit, sender *domain.Sender, receptionTime time.Time) ([]command.Command, error) {
	asset, err := e.assets.AssetByHistoryID(ctx, unit.AssetHistoryIDs[0])
	if err != nil {
		return nil, fmt.Errorf("resolve asset history %s: %w", unit.AssetHistoryIDs[0], err)
	}

	var areas []domain.Area
	if unit.Position != nil {
		at := unit.OccurredAt
		if at.IsZero() {
			at = receptionTime
		}
		areas, err = e.areas.AreasAt(ctx, *unit.Position, at)
		if err != nil {
			return nil, fmt.Errorf("resolve areas: %w", err)
		}
	}

	var cmds []command.Command

	// Open triggerings are re-evaluated whether or not anything new triggers.
	if unit.Position != nil {
		cmds = append(cmds, &command.Stop{
			Evaluator: e.stopper,
			Criteria: matching.StopCriteria{
				ConnectID:     asset.GUID,
				AreasReported: true,
				CurrentAreas:  areas,
			},
		})
	}
	for _, act := range unit.Activities {
		cmds = append(cmds, &command.Stop{
			Evaluator: e.stopper,
			Criteria: matching.StopCriteria{
				ConnectID:  asset.GUID,
				Activities: []domain.Activity{act},
			},
		})
	}

	criteria := matching.Criteria{
		Areas:           areas,
		AreasReported:   unit.Position != nil,
		Assets:          assetCriteria(asset),
		StartActivities: unit.Activities,
		Sender:          sender,
		ValidAt:         receptionTime,
		TriggerTypes:    []domain.TriggerType{domain.TriggerTypeIncFAReport},
	}
	subs, err := e.matcher.FindTriggeredSubscriptions(ctx, criteria)
	if err != nil {
		return nil, err
	}

	for _, sub := range subs {
		data := triggeringData(sub, asset)
		data[domain.DataKeyReportID] = unit.ReportID
		if unit.TripID != "" {
			data[domain.DataKeyTripID] = unit.TripID
		}
		cmds = append(cmds, &command.TriggerAndMerge{
			Triggerer: e.triggerer,
			Triggering: domain.TriggeredSubscription{
				SubscriptionID: sub.ID,
				Source:         domain.SourceActivity,
				EffectiveFrom:  receptionTime,
				Data:           data,
			},
			DuplicateKeys: []string{domain.DataKeyConnectID},
			Accumulate:    []string{domain.DataKeyReportID, domain.DataKeyTripID},
		})
	}
	return cmds, nil
}

func assetCriteria(asset domain.Asset) []matching.AssetCriterion {
	out := []matching.AssetCriterion{{Type: domain.AssetTypeAsset, GUID: asset.GUID}}
	for _, g := range asset.Groups {
		out = append(out, matching.AssetCriterion{Type: domain.AssetTypeAssetGroup, GUID: g})
	}
	return out
}
