package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/utils"
	"timezone-scheduler/modules/scheduler/dto"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/repository"
)

const CancelPath = "/api/v1/public/scheduler/cancel"

// CancelKey is the payload sealed into a participant's cancel link.
type CancelKey struct {
	ConfigKey  string       `json:"config_key"`
	SlotID     string       `json:"slot_id"`
	Owner      entity.Owner `json:"owner"`
	ReservedTS int64        `json:"reserved_ts"`
}

// LinkSigner seals and opens cancel keys.
type LinkSigner struct {
	sealer  *utils.Sealer
	baseURL string
}

func NewLinkSigner(secret, baseURL string) (*LinkSigner, error) {
	sealer, err := utils.NewSealer(secret)
	if err != nil {
		return nil, err
	}
	return &LinkSigner{sealer: sealer, baseURL: baseURL}, nil
}

// KeyFor builds the key for a reserved slot.
func KeyFor(configKey string, slot *entity.Slot) (CancelKey, error) {
	owner := slot.Owner()
	if owner == nil || !slot.IsStamped() {
		return CancelKey{}, fmt.Errorf("slot %s is not reserved", slot.ID)
	}
	return CancelKey{ConfigKey: configKey, SlotID: slot.ID, Owner: owner.Normalized(), ReservedTS: slot.ReservedAt.Unix()}, nil
}

func (l *LinkSigner) Seal(key CancelKey) (string, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return l.sealer.Seal(raw)
}

func (l *LinkSigner) Open(sealed string) (CancelKey, error) {
	var key CancelKey
	raw, err := l.sealer.Open(sealed)
	if err != nil {
		return key, err
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return key, err
	}
	if key.ConfigKey == "" || key.SlotID == "" || !key.Owner.Valid() {
		return key, fmt.Errorf("incomplete cancel key")
	}
	return key, nil
}

// BuildURL returns the public cancel link for key.
func (l *LinkSigner) BuildURL(key CancelKey) (string, error) {
	sealed, err := l.Seal(key)
	if err != nil {
		return "", err
	}
	return l.baseURL + CancelPath + "?key=" + url.QueryEscape(sealed), nil
}

// CancelLinkService backs the public cancel page: a sealed key names the reservation,
// and a short-lived confirmation token proves the participant saw the confirmation step.
type CancelLinkService struct {
	signer *LinkSigner
	slots  repository.SlotRepositoryInterface
	engine ReservationServiceInterface
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewCancelLinkService(signer *LinkSigner, slots repository.SlotRepositoryInterface, engine ReservationServiceInterface, secret string, ttl time.Duration, now func() time.Time) *CancelLinkService {
	if ttl <= 0 {
		ttl = constants.DefaultCancelWindow
	}
	if now == nil {
		now = time.Now
	}
	return &CancelLinkService{signer: signer, slots: slots, engine: engine, secret: secret, ttl: ttl, now: now}
}

func invalidLink(err error) *errors.AppError {
	return errors.NewAppError(errors.ErrInvalidCancelLink, "This appointment slot has changed and this cancel link is no longer valid.", err)
}

// verify opens sealed and checks the slot still carries the same reservation.
func (s *CancelLinkService) verify(ctx context.Context, sealed string) (CancelKey, *entity.Slot, *errors.AppError) {
	if s.signer == nil {
		return CancelKey{}, nil, errors.NewAppError(errors.ErrInvalidConfig, "Cancel links are not configured", nil)
	}
	key, err := s.signer.Open(sealed)
	if err != nil {
		logger.Warn("CancelLinkService:verify:Open", "error", err)
		return key, nil, errors.NewAppError(errors.ErrInvalidCancelLink, "This cancel link is not valid.", err)
	}
	slot, err := s.slots.Get(ctx, key.ConfigKey, key.SlotID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSlotNotFound) {
			return key, nil, invalidLink(err)
		}
		return key, nil, slotError(err)
	}
	owner := slot.Owner()
	if !slot.IsStamped() || owner == nil || slot.ReservedAt.Unix() != key.ReservedTS || !owner.Equal(key.Owner) {
		return key, nil, invalidLink(nil)
	}
	return key, slot, nil
}

// Prepare validates a link and issues the confirmation token.
func (s *CancelLinkService) Prepare(ctx context.Context, sealed string) (*dto.CancelConfirmationResponse, *errors.AppError) {
	key, slot, appErr := s.verify(ctx, sealed)
	if appErr != nil {
		return nil, appErr
	}
	now := s.now()
	token, err := utils.GenerateConfirmToken(s.secret, key.ConfigKey, constants.ScopeTokenCancelConfirm, now, s.ttl)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to issue confirmation token", err)
	}
	return &dto.CancelConfirmationResponse{
		SlotID:      slot.ID,
		Description: slot.ParticipantDescription,
		Token:       token,
		ExpiresAt:   now.Add(s.ttl),
	}, nil
}

// Cancel checks the confirmation token and cancels the reservation the link names.
func (s *CancelLinkService) Cancel(ctx context.Context, sealed, token string) (map[string]string, *errors.AppError) {
	key, _, appErr := s.verify(ctx, sealed)
	if appErr != nil {
		return nil, appErr
	}
	claims, err := utils.ParseConfirmToken(s.secret, token, s.now())
	if err != nil {
		if stderrors.Is(err, utils.ErrTokenExpired) {
			return nil, errors.NewAppError(errors.ErrTokenExpired, "This confirmation has expired. Please open the cancel link again.", err)
		}
		return nil, errors.NewAppError(errors.ErrInvalidCancelLink, "This confirmation is not valid.", err)
	}
	if claims.Scope != constants.ScopeTokenCancelConfirm || claims.ConfigKey != key.ConfigKey {
		return nil, errors.NewAppError(errors.ErrInvalidCancelLink, "This confirmation does not belong to this cancel link.", nil)
	}
	return s.engine.Cancel(ctx, key.ConfigKey, key.SlotID, key.Owner, false)
}
