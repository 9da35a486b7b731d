package mailchimp

import "errors"

var (
	// ErrProviderNotConfigured means the customer record has no subscription
	// state for this handler's shortcut. This is a configuration problem
	// with the customer schema, not a per-item failure.
	ErrProviderNotConfigured = errors.New("customer is not configured for this provider shortcut")

	// ErrUnmappedStatus means a provider status has no reverse mapping to a
	// local newsletter status.
	ErrUnmappedStatus = errors.New("provider status has no reverse mapping")

	// ErrUnknownTransformer means the provider config names a field
	// transformer that is not registered.
	ErrUnknownTransformer = errors.New("unknown field transformer")
)
