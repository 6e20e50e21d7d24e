// Package paging implements the continuation token that drives asset
// population sweeps across many asynchronous round trips.
//
// A token carries everything a worker needs to fetch one page and, if the
// page is full, to ask for the next one. No state is held between pages.
package paging

import (
	"math"
	"strconv"
	"strings"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

const (
	separator = ";"

	groupMarker = "g"
	ownMarker   = "m"

	// OwnAssetsKeyword stands in for the group id when the sweep covers the
	// subscription's own configured asset set.
	OwnAssetsKeyword = "SUBSCRIPTION_ASSETS"
)

// Continuation identifies one page of an asset sweep.
type Continuation struct {
	IsGroup             bool
	SubscriptionID      int64
	AssetGroupOrKeyword string
	PageNumber          int // 1-based
	PageSize            int
}

// ForGroup returns the first page of a sweep over an asset group.
func ForGroup(subscriptionID int64, groupGUID string, pageSize int) Continuation {
	return Continuation{
		IsGroup:             true,
		SubscriptionID:      subscriptionID,
		AssetGroupOrKeyword: groupGUID,
		PageNumber:          1,
		PageSize:            pageSize,
	}
}

// ForOwnAssets returns the first page of a sweep over the subscription's own assets.
func ForOwnAssets(subscriptionID int64, pageSize int) Continuation {
	return Continuation{
		SubscriptionID:      subscriptionID,
		AssetGroupOrKeyword: OwnAssetsKeyword,
		PageNumber:          1,
		PageSize:            pageSize,
	}
}

// Encode renders c as <g|m>;<subscriptionId>;<assetGroupOrKeyword>;<pageNumber>;<pageSize>.
func (c Continuation) Encode() (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	marker := ownMarker
	if c.IsGroup {
		marker = groupMarker
	}
	return strings.Join([]string{
		marker,
		strconv.FormatInt(c.SubscriptionID, 10),
		c.AssetGroupOrKeyword,
		strconv.Itoa(c.PageNumber),
		strconv.Itoa(c.PageSize),
	}, separator), nil
}

// Decode parses a token produced by Encode.
func Decode(s string) (Continuation, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 5 {
		return Continuation{}, domain.Malformed("continuation", "expected 5 fields, got %d in %q", len(parts), s)
	}

	var c Continuation
	switch parts[0] {
	case groupMarker:
		c.IsGroup = true
	case ownMarker:
	default:
		return Continuation{}, domain.Malformed("continuation", "unknown marker %q", parts[0])
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Continuation{}, domain.Malformed("continuation", "subscription id %q: %v", parts[1], err)
	}
	c.SubscriptionID = id
	c.AssetGroupOrKeyword = parts[2]

	if c.PageNumber, err = strconv.Atoi(parts[3]); err != nil {
		return Continuation{}, domain.Malformed("continuation", "page number %q: %v", parts[3], err)
	}
	if c.PageSize, err = strconv.Atoi(parts[4]); err != nil {
		return Continuation{}, domain.Malformed("continuation", "page size %q: %v", parts[4], err)
	}

	if err := c.validate(); err != nil {
		return Continuation{}, err
	}
	return c, nil
}

func (c Continuation) validate() error {
	if c.SubscriptionID <= 0 {
		return domain.Malformed("continuation", "subscription id must be positive, got %d", c.SubscriptionID)
	}
	if c.AssetGroupOrKeyword == "" {
		return domain.Malformed("continuation", "asset group or keyword is empty")
	}
	if strings.Contains(c.AssetGroupOrKeyword, separator) {
		return domain.Malformed("continuation", "asset group %q contains %q", c.AssetGroupOrKeyword, separator)
	}
	if !c.IsGroup && c.AssetGroupOrKeyword != OwnAssetsKeyword {
		return domain.Malformed("continuation", "own-asset sweep must use keyword %s, got %q", OwnAssetsKeyword, c.AssetGroupOrKeyword)
	}
	if c.PageNumber < 1 {
		return domain.Malformed("continuation", "page number must be >= 1, got %d", c.PageNumber)
	}
	if c.PageSize < 1 {
		return domain.Malformed("continuation", "page size must be >= 1, got %d", c.PageSize)
	}
	if c.PageNumber-1 > math.MaxInt/c.PageSize {
		return domain.Malformed("continuation", "page %d of size %d is out of range", c.PageNumber, c.PageSize)
	}
	return nil
}

// Next returns the token for the following page.
func (c Continuation) Next() Continuation {
	c.PageNumber++
	return c
}

// IsLastPage reports whether a page holding count results ends the sweep.
func (c Continuation) IsLastPage(count int) bool {
	return count < c.PageSize
}

// Offset is the zero-based index of the first item on this page.
func (c Continuation) Offset() int {
	return (c.PageNumber - 1) * c.PageSize
}
