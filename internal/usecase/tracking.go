package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
)

// Signer authenticates tracking traffic with HMAC-SHA256.
type Signer struct {
	secret  []byte
	baseURL string
}

func NewSigner(secret, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts a bare hex digest or one prefixed with "sha256=".
func (s *Signer) Verify(payload []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(payload))
	return hmac.Equal(got, want)
}

func (s *Signer) PixelURL(campaignID, leadID string) string {
	sig := s.Sign(pixelPayload(campaignID, leadID))
	return fmt.Sprintf("%s/tracking/open/%s/%s.gif?sig=%s", s.baseURL, campaignID, leadID, sig)
}

func (s *Signer) VerifyPixel(campaignID, leadID, sig string) bool {
	return s.Verify(pixelPayload(campaignID, leadID), sig)
}

func pixelPayload(campaignID, leadID string) []byte {
	return []byte("open:" + campaignID + ":" + leadID)
}

// PixelEventID is the dedupe key for a pixel hit; one open is counted per
// recipient no matter how often the image loads.
func PixelEventID(campaignID, leadID string) string {
	return "pixel:" + campaignID + ":" + leadID
}

type TrackingUseCase struct {
	Campaigns entity.CampaignRepository
	Deduper   EventDeduper
	Metrics   Metrics
	Logger    *zap.Logger
}

func NewTrackingUseCase(campaigns entity.CampaignRepository, deduper EventDeduper, metrics Metrics, logger *zap.Logger) *TrackingUseCase {
	return &TrackingUseCase{Campaigns: campaigns, Deduper: deduper, Metrics: metricsOrNop(metrics), Logger: logger}
}

// Record applies one engagement event. Counters are accepted in any campaign
// status but only for recipients whose send succeeded.
func (uc *TrackingUseCase) Record(ctx context.Context, input TrackingEventInput) (*TrackingResult, error) {
	var errs []ValidationError
	if strings.TrimSpace(input.EventID) == "" {
		errs = append(errs, ValidationError{"event_id", "is required"})
	}
	if input.CampaignID == "" {
		errs = append(errs, ValidationError{"campaign_id", "is required"})
	}
	if input.LeadID == "" {
		errs = append(errs, ValidationError{"lead_id", "is required"})
	}
	counter, ok := input.Kind.Counter()
	if !ok {
		errs = append(errs, ValidationError{"kind", "must be open, click or reply"})
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	recipient, err := uc.Campaigns.FindRecipient(ctx, input.CampaignID, input.LeadID)
	if err != nil {
		return nil, fromRepo(err, "recipient")
	}
	if recipient.Status != entity.RecipientSent {
		return nil, invalidTransition("recipient has no successful send to attribute %s to", input.Kind)
	}

	key := string(input.Kind) + ":" + input.EventID
	marked := false
	if uc.Deduper != nil {
		first, err := uc.Deduper.FirstSeen(ctx, key)
		switch {
		case err != nil:
			uc.Logger.Warn("event dedupe unavailable, counting event", zap.String("event_id", input.EventID), zap.Error(err))
		case !first:
			return &TrackingResult{Duplicate: true}, nil
		default:
			marked = true
		}
	}

	if err := uc.Campaigns.IncrementCounter(ctx, input.CampaignID, counter); err != nil {
		if marked {
			if ferr := uc.Deduper.Forget(ctx, key); ferr != nil {
				uc.Logger.Error("failed to release event after count failure, retries will be dropped",
					zap.String("event_id", input.EventID), zap.Error(ferr))
			}
		}
		if errors.Is(err, entity.ErrNotFound) {
			return nil, notFound("campaign")
		}
		return nil, technical("failed to count engagement", err)
	}
	uc.Metrics.RecordEngagement(string(input.Kind))
	return &TrackingResult{Accepted: true}, nil
}
