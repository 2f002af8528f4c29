package types

// SubscriberStatus represents the opt-in state of a subscriber.
// There are exactly two states; records are never deleted.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// DispatchMode selects between a real batch send and a single test delivery.
type DispatchMode string

const (
	ModeSend DispatchMode = "send"
	ModeTest DispatchMode = "test"
)

// MailBackend identifies the configured outbound transport.
type MailBackend string

const (
	BackendSMTP MailBackend = "smtp"
	BackendAPI  MailBackend = "api"
)
