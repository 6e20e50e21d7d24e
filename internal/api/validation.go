package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/extractor"
)

func parseSubscriptionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subscription id %q", raw)
	}
	return id, nil
}

// validateActivityReport rejects payloads the activity extractor would drop as malformed.
func validateActivityReport(body string) error {
	if body == "" {
		return fmt.Errorf("request body is required")
	}
	if _, err := extractor.ParseActivityReport(body); err != nil {
		return err
	}
	return nil
}

// senderFromHeaders returns the sender named by the X-Sender-* headers, or
// nil when none is set. A partial sender is rejected.
func senderFromHeaders(h http.Header) (*domain.Sender, error) {
	s := domain.Sender{
		Organisation: h.Get(HeaderSenderOrganisation),
		Endpoint:     h.Get(HeaderSenderEndpoint),
		Channel:      h.Get(HeaderSenderChannel),
	}
	if s.IsZero() {
		return nil, nil
	}
	if s.Organisation == "" || s.Endpoint == "" || s.Channel == "" {
		return nil, fmt.Errorf("%s, %s and %s must be set together",
			HeaderSenderOrganisation, HeaderSenderEndpoint, HeaderSenderChannel)
	}
	return &s, nil
}
