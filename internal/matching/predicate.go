package matching

import (
	"slices"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

// Matches reports whether sub is triggered by an event described by c.
// All applicable criteria are ANDed; values within one criterion are ORed.
func Matches(sub domain.Subscription, c Criteria) bool {
	if !sub.Active || !sub.ValidAt(c.ValidAt) {
		return false
	}

	if len(c.Areas) > 0 || c.AreasReported {
		ok := (len(sub.Areas) == 0 && sub.AllowWithNoArea) || intersectsAreas(sub.Areas, c.Areas)
		if !ok {
			return false
		}
	}

	if len(c.Assets) > 0 {
		noAssets := len(sub.Assets) == 0 && len(sub.AssetGroups) == 0
		ok := (noAssets && sub.AllowWithNoAsset) ||
			containsGUID(sub.Assets, c.AssetGUIDs(domain.AssetTypeAsset)) ||
			containsGUID(sub.AssetGroups, c.AssetGUIDs(domain.AssetTypeAssetGroup))
		if !ok {
			return false
		}
	}

	if len(c.StartActivities) > 0 {
		ok := (len(sub.StartActivities) == 0 && sub.AllowWithNoStartActivity) ||
			intersectsActivities(sub.StartActivities, c.StartActivities)
		if !ok {
			return false
		}
	}

	if c.Sender != nil {
		ok := (len(sub.Senders) == 0 && sub.AllowWithNoSenders) || slices.Contains(sub.Senders, *c.Sender)
		if !ok {
			return false
		}
	}

	if len(c.TriggerTypes) > 0 && !slices.Contains(c.TriggerTypes, sub.Execution.TriggerType) {
		return false
	}

	return true
}

// MatchesStop reports whether the open triggering ts of sub ends because of
// the event described by c.
func MatchesStop(ts domain.TriggeredSubscription, sub domain.Subscription, c StopCriteria) bool {
	if ts.Status != domain.TriggeredStatusActive {
		return false
	}
	if c.ConnectID == "" || ts.Data[domain.DataKeyConnectID] != c.ConnectID {
		return false
	}

	if c.AreasReported && sub.StopWhenQuitArea && len(sub.Areas) > 0 &&
		!intersectsAreas(sub.Areas, c.CurrentAreas) {
		return true
	}

	return len(c.Activities) > 0 && intersectsActivities(sub.StopActivities, c.Activities)
}

func intersectsAreas(configured, supplied []domain.Area) bool {
	for _, a := range configured {
		if slices.Contains(supplied, a) {
			return true
		}
	}
	return false
}

func intersectsActivities(configured, supplied []domain.Activity) bool {
	for _, a := range configured {
		if slices.Contains(supplied, a) {
			return true
		}
	}
	return false
}

func containsGUID(configured []domain.AssetRef, guids []string) bool {
	for _, ref := range configured {
		if slices.Contains(guids, ref.GUID) {
			return true
		}
	}
	return false
}
