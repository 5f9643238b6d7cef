package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

const pinDigits = 6

// PinSender delivers an issued PIN to its owner.
type PinSender interface {
	SendPin(ctx context.Context, email, pin string, expiresAt time.Time) error
}

// LogPinSender records that a PIN was issued without delivering it. It stands
// in until a mail transport is configured.
type LogPinSender struct {
	Logger *zap.Logger
}

func (s LogPinSender) SendPin(ctx context.Context, email, pin string, expiresAt time.Time) error {
	s.Logger.Info("Approval PIN issued", zap.String("email", email), zap.Time("expires_at", expiresAt))
	return nil
}

// PinService issues and verifies short-lived password reset PINs.
type PinService interface {
	Issue(ctx context.Context, email string) (*domain.ApprovalPin, error)
	Verify(ctx context.Context, email, pin string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type pinServiceImpl struct {
	uow         *database.UnitOfWork
	pins        repository.PinRepository
	sender      PinSender
	ttl         time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewPinService(rt *Runtime, pins repository.PinRepository, sender PinSender, ttl time.Duration, maxAttempts int) PinService {
	return &pinServiceImpl{
		uow:         rt.UoW,
		pins:        pins,
		sender:      sender,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		logger:      rt.Logger,
		now:         rt.now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func pinKey(email string) string {
	return "pin:" + email
}

func randomPin() (string, error) {
	var b strings.Builder
	for i := 0; i < pinDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Issue creates a fresh PIN for email. Earlier PINs stay in the table until
// they expire but only the latest one verifies.
func (s *pinServiceImpl) Issue(ctx context.Context, email string) (*domain.ApprovalPin, error) {
	email = normalizeEmail(email)
	code, err := randomPin()
	if err != nil {
		return nil, response.NewInternalError("failed to generate pin", err)
	}
	now := s.now()
	pin := &domain.ApprovalPin{Email: email, Pin: code, ExpiresAt: now.Add(s.ttl), CreatedAt: now}
	err = s.uow.Do(ctx, []string{pinKey(email)}, func(tx *database.Tx) error {
		return database.ClassifyError(s.pins.WithTx(tx.DB).Create(ctx, pin))
	})
	if err != nil {
		return nil, err
	}
	if err := s.sender.SendPin(ctx, email, code, pin.ExpiresAt); err != nil {
		s.logger.Error("Failed to send approval PIN", zap.String("email", email), zap.Error(err))
	}
	return pin, nil
}

// Verify checks pin against the latest PIN for email. A wrong guess counts an
// attempt; once the attempts are used up the PIN is dead even if it later matches.
func (s *pinServiceImpl) Verify(ctx context.Context, email, pin string) error {
	email = normalizeEmail(email)
	var verifyErr error
	err := s.uow.Do(ctx, []string{pinKey(email)}, func(tx *database.Tx) error {
		verifyErr = nil
		repo := s.pins.WithTx(tx.DB)
		latest, err := repo.FindLatest(ctx, email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFoundError("no pin issued for this email", "")
		}
		if err != nil {
			return database.ClassifyError(err)
		}
		switch {
		case latest.Verified:
			return response.NewConflictError(response.ReasonPinExpired, "pin was already used")
		case latest.Expired(s.now()):
			return response.NewConflictError(response.ReasonPinExpired, "pin has expired")
		case latest.Attempts >= s.maxAttempts:
			return response.NewConflictError(response.ReasonPinAttempts, "too many attempts")
		}
		if subtle.ConstantTimeCompare([]byte(latest.Pin), []byte(pin)) != 1 {
			latest.Attempts++
			verifyErr = response.NewValidationError("pin does not match", "")
		} else {
			latest.Verified = true
		}
		return database.ClassifyError(repo.Save(ctx, latest))
	})
	if err != nil {
		return err
	}
	return verifyErr
}

func (s *pinServiceImpl) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.pins.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, database.ClassifyError(err)
	}
	return n, nil
}
