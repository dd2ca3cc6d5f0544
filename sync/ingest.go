// ABOUTME: Ingest of subscription records produced by the mailbox extractor
// ABOUTME: Applies the confidence threshold and upserts by source email
package sync

import (
	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

// IngestExtracted stores an extractor record as a subscription. Records below
// minConfidence are ignored and return nil. A record whose source email was
// already ingested updates that subscription instead of creating another.
func (e *Engine) IngestExtracted(userID string, rec models.ExtractedSubscription, minConfidence float64) (*models.Subscription, error) {
	if rec.Confidence < minConfidence {
		e.logger.Debug("skipping low-confidence extraction", "user", userID, "name", rec.Name, "confidence", rec.Confidence)
		return nil, nil
	}
	if rec.Name == "" {
		return nil, ErrMissingName
	}

	if rec.SourceEmailID != "" {
		existing, err := db.GetSubscriptionBySourceEmail(e.db, userID, rec.SourceEmailID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			applyExtraction(existing, rec)
			if err := db.UpdateSubscriptionDetails(e.db, existing); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}

	sub := &models.Subscription{UserID: userID, SourceEmailID: rec.SourceEmailID}
	applyExtraction(sub, rec)
	if err := db.CreateSubscription(e.db, sub); err != nil {
		return nil, err
	}

	e.logger.Info("ingested subscription", "user", userID, "subscription", sub.ID, "name", sub.Name)
	return sub, nil
}

func applyExtraction(sub *models.Subscription, rec models.ExtractedSubscription) {
	sub.Name = rec.Name
	sub.RenewalDate = rec.RenewalDate
	sub.TrialEndDate = rec.TrialEndDate
	sub.Amount = rec.Amount
	sub.Currency = rec.Currency
	sub.CancelURL = rec.CancelURL
}
