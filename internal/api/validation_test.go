package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

func TestParseSubscriptionID(t *testing.T) {
	id, err := parseSubscriptionID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "4.2", "abc"} {
		_, err := parseSubscriptionID(raw)
		assert.Error(t, err, raw)
	}
}

func TestValidateActivityReport(t *testing.T) {
	assert.NoError(t, validateActivityReport(activityReport))

	err := validateActivityReport(`{"units":[{"assetHistoryIds":["h-1"]}]}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformed))
}

func TestSenderFromHeaders(t *testing.T) {
	s, err := senderFromHeaders(http.Header{})
	require.NoError(t, err)
	assert.Nil(t, s)

	h := http.Header{}
	h.Set(HeaderSenderOrganisation, "BEL")
	h.Set(HeaderSenderEndpoint, "BEL-EP")
	h.Set(HeaderSenderChannel, "FLUX")
	s, err = senderFromHeaders(h)
	require.NoError(t, err)
	assert.Equal(t, &domain.Sender{Organisation: "BEL", Endpoint: "BEL-EP", Channel: "FLUX"}, s)

	h.Del(HeaderSenderChannel)
	_, err = senderFromHeaders(h)
	assert.Error(t, err)
}
