package store

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/halcyon-wallet/gateway/internal/approval"
)

// NewApprovalAuditor returns an approval.Queue resolution hook that writes
// one audit row per decided request. Failures are logged, never propagated:
// audit must not block the signing path.
func NewApprovalAuditor(repo *Repository, logger *log.Logger) func(approval.Request, approval.Outcome) {
	return func(req approval.Request, out approval.Outcome) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		entry := &ApprovalLog{
			RequestID: req.ID,
			Origin:    req.Origin,
			WindowID:  req.WindowID,
			Kind:      string(req.Kind),
			Decision:  string(out.Decision),
			Summary:   summarize(req),
		}
		if err := repo.InsertApprovalLog(ctx, entry); err != nil && logger != nil {
			logger.Printf("approval audit write failed: id=%s err=%v", req.ID, err)
		}
	}
}

// summarize renders the request payload for the audit row. Secrets never
// appear here: outcome data is deliberately excluded.
func summarize(req approval.Request) string {
	var payload any
	switch req.Kind {
	case approval.KindTransaction:
		payload = req.Transaction
	case approval.KindPersonalSign:
		payload = req.PersonalSign
	case approval.KindTypedDataSign:
		payload = req.TypedData
	case approval.KindWatchAsset:
		payload = req.WatchAsset
	case approval.KindSwitchNetwork:
		payload = req.SwitchNetwork
	case approval.KindAddNetwork:
		payload = req.AddNetwork
	default:
		return ""
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}
