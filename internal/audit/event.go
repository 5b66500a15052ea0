package audit

import "time"

// Kind enumerates the subscription lifecycle outcomes SPEC_FULL §3's
// Audit event expansion names.
type Kind string

const (
	KindSubscribe    Kind = "subscribe"
	KindUnsubscribe  Kind = "unsubscribe"
	KindUpdate       Kind = "update"
	KindInvalid      Kind = "invalid"
	KindUnauthorized Kind = "unauthorized"
	KindInitFailed   Kind = "init_failed"
)

// Event is one recorded subscription lifecycle occurrence.
type Event struct {
	Time         time.Time
	Kind         Kind
	NodeName     string
	SubscriberID string
}
