package domain

import (
	"fmt"
	"time"
)

type TriggerType string

const (
	TriggerTypeManual      TriggerType = "MANUAL"
	TriggerTypeScheduler   TriggerType = "SCHEDULER"
	TriggerTypeIncFAReport TriggerType = "INC_FA_REPORT"
	TriggerTypeIncFAQuery  TriggerType = "INC_FA_QUERY"
	TriggerTypeIncPosition TriggerType = "INC_POSITION"
)

type OutgoingMessageType string

const (
	MessageTypeNone     OutgoingMessageType = "NONE"
	MessageTypeFAQuery  OutgoingMessageType = "FA_QUERY"
	MessageTypeFAReport OutgoingMessageType = "FA_REPORT"
	MessageTypePosition OutgoingMessageType = "POSITION"
)

// RequiresSubscriber reports whether messages of this type are addressed to a subscriber.
func (t OutgoingMessageType) RequiresSubscriber() bool {
	return t != "" && t != MessageTypeNone
}

type TimeUnit string

const (
	TimeUnitMinutes TimeUnit = "MINUTES"
	TimeUnitHours   TimeUnit = "HOURS"
	TimeUnitDays    TimeUnit = "DAYS"
	TimeUnitWeeks   TimeUnit = "WEEKS"
	TimeUnitMonths  TimeUnit = "MONTHS"
)

type AreaType string

const (
	AreaTypeEEZ        AreaType = "EEZ"
	AreaTypeRFMO       AreaType = "RFMO"
	AreaTypePort       AreaType = "PORT"
	AreaTypeFAO        AreaType = "FAO"
	AreaTypeStatRect   AreaType = "STATRECT"
	AreaTypeUserArea   AreaType = "USERAREA"
	AreaTypeGFCM       AreaType = "GFCM"
	AreaTypeManagement AreaType = "MANAGEMENT"
)

type Area struct {
	Type AreaType
	GID  string
}

func (a Area) String() string {
	return string(a.Type) + ":" + a.GID
}

type AssetType string

const (
	AssetTypeAsset      AssetType = "ASSET"
	AssetTypeAssetGroup AssetType = "ASSET_GROUP"
)

// AssetRef is a configured asset or asset group of a subscription.
type AssetRef struct {
	GUID string
	Name string
}

// Activity is a fishing activity marker, e.g. {FISHING_ACTIVITY, DEPARTURE}.
type Activity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Sender identifies where an incoming message came from.
type Sender struct {
	Organisation string `json:"organisation"`
	Endpoint     string `json:"endpoint"`
	Channel      string `json:"channel"`
}

func (s Sender) IsZero() bool {
	return s == Sender{}
}

type Subscriber struct {
	Organisation string
	Endpoint     string
	Channel      string
}

type OutputConfig struct {
	MessageType OutgoingMessageType
	Subscriber  *Subscriber
	Email       bool
	// VesselIDs lists the identifier schemes (CFR, IRCS, ...) attached to triggerings.
	VesselIDs []string

	QueryStart *time.Time
	QueryEnd   *time.Time

	History     int
	HistoryUnit TimeUnit
}

// HasFixedQueryPeriod reports whether the report window is pinned to absolute instants.
func (o OutputConfig) HasFixedQueryPeriod() bool {
	return o.QueryStart != nil || o.QueryEnd != nil
}

type ExecutionConfig struct {
	TriggerType    TriggerType
	Frequency      int
	FrequencyUnit  TimeUnit
	TimeExpression string // HH:MM, UTC

	NextScheduledExecution *time.Time
}

type Subscription struct {
	ID          int64
	Name        string
	Description string
	Active      bool

	StartDate time.Time
	EndDate   time.Time

	Output    OutputConfig
	Execution ExecutionConfig

	Areas           []Area
	Assets          []AssetRef
	AssetGroups     []AssetRef
	StartActivities []Activity
	StopActivities  []Activity
	Senders         []Sender

	AllowWithNoArea          bool
	AllowWithNoAsset         bool
	AllowWithNoStartActivity bool
	AllowWithNoSenders       bool

	// StopWhenQuitArea stops a triggering once its asset is outside every configured area.
	StopWhenQuitArea bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidAt reports whether t lies in [StartDate, EndDate).
func (s Subscription) ValidAt(t time.Time) bool {
	return !t.Before(s.StartDate) && t.Before(s.EndDate)
}

// Expired reports whether the validity period has ended at t.
func (s Subscription) Expired(t time.Time) bool {
	return !t.Before(s.EndDate)
}

// Validate checks the invariants a persisted subscription must hold.
func (s Subscription) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subscription: name is required")
	}
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return fmt.Errorf("subscription %q: validity period is required", s.Name)
	}
	if s.StartDate.After(s.EndDate) {
		return fmt.Errorf("subscription %q: start date %s is after end date %s",
			s.Name, s.StartDate.Format(time.RFC3339), s.EndDate.Format(time.RFC3339))
	}

	if s.Execution.TriggerType == TriggerTypeScheduler {
		if s.Execution.Frequency <= 0 {
			return fmt.Errorf("subscription %q: scheduler frequency must be positive", s.Name)
		}
		if s.Execution.FrequencyUnit == "" {
			return fmt.Errorf("subscription %q: scheduler frequency unit is required", s.Name)
		}
		if s.Execution.TimeExpression == "" {
			return fmt.Errorf("subscription %q: scheduler time expression is required", s.Name)
		}
	}

	if sub := s.Output.Subscriber; sub != nil {
		set := 0
		for _, f := range []string{sub.Organisation, sub.Endpoint, sub.Channel} {
			if f != "" {
				set++
			}
		}
		if set != 0 && set != 3 {
			return fmt.Errorf("subscription %q: subscriber organisation, endpoint and channel must be set together", s.Name)
		}
		if set == 0 && s.Output.MessageType.RequiresSubscriber() {
			return fmt.Errorf("subscription %q: message type %s requires a subscriber", s.Name, s.Output.MessageType)
		}
	} else if s.Output.MessageType.RequiresSubscriber() {
		return fmt.Errorf("subscription %q: message type %s requires a subscriber", s.Name, s.Output.MessageType)
	}

	return nil
}
