// Package subscription is the gateway's service layer over the platform
// adapters.
//
// It resolves the adapter configured for a platform name, serializes calls
// touching the same contact across replicas with a distributed lock, and
// records every outcome as a domain.SubscriptionEvent. Adapter results and
// errors are returned unchanged; a failure to record an event is logged and
// never alters them.
//
// The service depends on the Repository interface defined in repository.go.
// It never imports net/http or database/sql directly.
package subscription
