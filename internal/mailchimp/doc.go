// Package mailchimp implements the provider handler that reconciles local
// customer newsletter state with a Mailchimp list.
//
// The handler is the decision core: it filters queue items down to the ones
// that actually need a remote call, builds the provider-shaped member entry
// (merge fields, interests, status), routes exports through the single or
// batch transport, absorbs webhook notifications back into local state, and
// keeps the remote interest-group tree in sync with local segment groups.
//
// Transport, persistence, and audit logging are collaborator interfaces
// (interfaces.go) injected at construction; the handler itself performs no
// I/O beyond calling them.
package mailchimp
