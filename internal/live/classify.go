// Package live handles the real-time feeds: account-change subscriptions
// and pushed webhooks. Both funnel into the same analysis as the batch
// engine, guarded by the activity write-ahead log.
package live

import (
	"strings"

	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// ClassifyActivity decides what kind of marketplace event a transaction is
// from its log messages. Fingerprints cover the marketplace programs the
// worker monitors; anything else is UNKNOWN and only logged.
func ClassifyActivity(logs []string) storage.ActivityType {
	for _, log := range logs {
		if strings.Contains(log, "Instruction: Buy") || strings.Contains(log, "Instruction: ExecuteSale") {
			return storage.ActivityPurchase
		}
	}
	for _, log := range logs {
		if strings.Contains(log, "Instruction: CancelSell") {
			return storage.ActivityDelist
		}
	}
	for _, log := range logs {
		if strings.Contains(log, "Instruction: Sell") {
			return storage.ActivityListing
		}
	}
	return storage.ActivityUnknown
}
