package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"every minute", "* * * * *"},
		{"every 5 minutes", "*/5 * * * *"},
		{"every hour", "0 * * * *"},
		{"descriptor", "@every 30s"},
		{"hourly descriptor", "@hourly"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr)
			require.NoError(t, err)
			assert.NotNil(t, sched)
		})
	}
}

func TestParser_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"four fields", "* * * *"},
		{"six fields", "* * * * * *"},
		{"invalid minute 60", "60 * * * *"},
		{"non-numeric", "abc * * * *"},
		{"empty", ""},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestSchedule_NextIsUTC(t *testing.T) {
	sched, err := NewParser().Parse("0 * * * *")
	require.NoError(t, err)

	loc := time.FixedZone("UTC+2", 2*60*60)
	after := time.Date(2020, 5, 5, 14, 30, 0, 0, loc)
	next := sched.Next(after)
	assert.Equal(t, time.Date(2020, 5, 5, 13, 0, 0, 0, time.UTC), next.UTC())
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		expr    string
		want    TimeOfDay
		wantErr bool
	}{
		{expr: "13:00", want: TimeOfDay{13, 0}},
		{expr: "00:05", want: TimeOfDay{0, 5}},
		{expr: "7:30", want: TimeOfDay{7, 30}},
		{expr: "23:59", want: TimeOfDay{23, 59}},
		{expr: "24:00", wantErr: true},
		{expr: "12:60", wantErr: true},
		{expr: "12:5", wantErr: true},
		{expr: "1300", wantErr: true},
		{expr: "", wantErr: true},
		{expr: "ab:cd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_On(t *testing.T) {
	day := time.Date(2020, 5, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2020, 5, 5, 13, 0, 0, 0, time.UTC), TimeOfDay{13, 0}.On(day))
}
