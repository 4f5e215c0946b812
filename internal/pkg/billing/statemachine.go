package billing

import (
	"strings"

	"github.com/marcwilhelm/echowave/app/models"
)

// allowedTransitions defines the subscription lifecycle graph:
//
//	created -> active -> {canceled <-> active} -> revoked
//
// with a terminal "ended" reachable from active/canceled once the provider
// reports an end timestamp. "revoked" and "ended" are terminal. Self
// transitions are always permitted so re-delivered and patch-style events
// stay idempotent.
var allowedTransitions = map[string][]string{
	models.SubscriptionStatusCreated:  {models.SubscriptionStatusActive, models.SubscriptionStatusRevoked},
	models.SubscriptionStatusActive:   {models.SubscriptionStatusCanceled, models.SubscriptionStatusRevoked, models.SubscriptionStatusEnded},
	models.SubscriptionStatusCanceled: {models.SubscriptionStatusActive, models.SubscriptionStatusRevoked, models.SubscriptionStatusEnded},
	models.SubscriptionStatusRevoked:  {},
	models.SubscriptionStatusEnded:    {},
}

// normalizeStatus folds provider status spellings onto the internal set.
// "uncanceled" is a transition, not a state: it lands back on active. A
// spelling the graph has never seen returns ok=false so callers can log and
// skip the status change instead of misfiling it onto the initial state.
func normalizeStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, "trialing":
		return models.SubscriptionStatusActive, true
	case models.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCanceled, true
	case models.SubscriptionStatusUncanceled:
		return models.SubscriptionStatusActive, true
	case models.SubscriptionStatusRevoked:
		return models.SubscriptionStatusRevoked, true
	case models.SubscriptionStatusEnded:
		return models.SubscriptionStatusEnded, true
	case "", models.SubscriptionStatusCreated, "incomplete":
		return models.SubscriptionStatusCreated, true
	default:
		return "", false
	}
}

// canTransition reports whether moving from one internal status to another
// follows an edge of the lifecycle graph. Staying on the same status is
// always allowed.
func canTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
