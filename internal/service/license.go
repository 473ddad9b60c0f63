package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/repository"
	"github.com/avalora/visuals-api/internal/utils"
)

// maxKeyAttempts bounds the collision-retry loop in Issue. A collision on
// a 20-character key is already vanishingly unlikely; hitting the bound
// repeatedly means the store is misbehaving, which is reported as
// Unavailable.
const maxKeyAttempts = 5

// LicenseStore is the slice of the license repository the service needs.
type LicenseStore interface {
	Create(ctx context.Context, l model.License) error
	GetByKey(ctx context.Context, key string) (model.License, error)
	GetByID(ctx context.Context, id string) (model.License, error)
	Claim(ctx context.Context, id, ownerID string, at time.Time) (bool, error)
	SetHwid(ctx context.Context, id, ownerID, hwid string) (bool, error)
	UpdateFields(ctx context.Context, id string, patch repository.LicensePatch) (bool, error)
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// OwnerResolver resolves an email to a user when an admin issues a
// pre-assigned license.
type OwnerResolver interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// LicenseService orchestrates issuance, activation, hardware binding and
// administrative updates of licenses.
type LicenseService struct {
	store  LicenseStore
	users  OwnerResolver
	segLen int
	now    func() time.Time
}

func NewLicenseService(store LicenseStore, users OwnerResolver, segLen int) *LicenseService {
	return &LicenseService{
		store:  store,
		users:  users,
		segLen: segLen,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IssueParams are the admin inputs for creating a license. OwnerEmail is
// optional: without it the license is created unclaimed and waits for an
// activation. DurationDays is ignored for lifetime licenses.
type IssueParams struct {
	ProductID    string
	DurationType string
	DurationDays int
	OwnerEmail   string
	Hwid         string
	IssuedBy     string
}

// Issue generates a unique key and creates the license row, active by
// default. Expiry is computed here, once; it is never recomputed later.
// When an owner email resolves, the license is stamped activated
// immediately.
func (s *LicenseService) Issue(ctx context.Context, p IssueParams) (model.License, error) {
	// A timed type without a day count would create a license with no
	// expiry, which reads as perpetual. Only lifetime (or no type at all)
	// may omit the days.
	if p.DurationType != "" && p.DurationType != model.DurationLifetime && p.DurationDays <= 0 {
		return model.License{}, ErrInvalidDuration
	}

	now := s.now()

	var ownerID *string
	var activatedAt *time.Time
	if p.OwnerEmail != "" {
		u, err := s.users.GetByEmail(ctx, NormalizeEmail(p.OwnerEmail))
		if err == nil {
			ownerID = &u.ID
			at := now
			activatedAt = &at
		} else if !errors.Is(err, sql.ErrNoRows) {
			return model.License{}, storeErr(err)
		}
		// An unknown owner email silently produces an unclaimed license;
		// the admin UI shows the missing owner.
	}

	var expiresAt *time.Time
	if p.DurationType != model.DurationLifetime && p.DurationDays > 0 {
		exp := now.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
		expiresAt = &exp
	}

	var durationType *string
	if p.DurationType != "" {
		durationType = &p.DurationType
	}
	var productID *string
	if p.ProductID != "" {
		productID = &p.ProductID
	}

	l := model.License{
		ID:           uuid.NewString(),
		ProductID:    productID,
		OwnerID:      ownerID,
		IssuedBy:     p.IssuedBy,
		IsActive:     true,
		DurationType: durationType,
		Hwid:         p.Hwid,
		ActivatedAt:  activatedAt,
		ExpiresAt:    expiresAt,
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := utils.NewLicenseKey(s.segLen)
		if err != nil {
			return model.License{}, err
		}
		l.LicenseKey = key
		err = s.store.Create(ctx, l)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, repository.ErrKeyExists) {
			return model.License{}, storeErr(err)
		}
	}
	return model.License{}, ErrUnavailable
}

// Activate claims an unclaimed license for userID. Re-activating a
// license one already owns is a no-op success, so the operation is safe
// to retry. The deactivation kill switch is checked before the owner
// no-op: a deactivated license reports Deactivated even to its owner.
// Two concurrent first claims race through a conditional update; the
// loser re-reads and gets AlreadyOwnedByOther.
func (s *LicenseService) Activate(ctx context.Context, userID, licenseKey string) (model.License, error) {
	l, err := s.store.GetByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.License{}, ErrNotFound
		}
		return model.License{}, storeErr(err)
	}

	if l.OwnerID != nil && *l.OwnerID != userID {
		return model.License{}, ErrAlreadyOwnedByOther
	}
	if !l.IsActive {
		return model.License{}, ErrDeactivated
	}
	if l.OwnerID != nil {
		return l, nil // idempotent for the current owner
	}

	now := s.now()
	claimed, err := s.store.Claim(ctx, l.ID, userID, now)
	if err != nil {
		return model.License{}, storeErr(err)
	}
	if !claimed {
		// Lost the race (or an admin deactivated in between). Re-read to
		// report the precise state, with the same ordering as above.
		l, err = s.store.GetByKey(ctx, licenseKey)
		if err != nil {
			return model.License{}, storeErr(err)
		}
		if l.OwnerID != nil && *l.OwnerID != userID {
			return model.License{}, ErrAlreadyOwnedByOther
		}
		if !l.IsActive {
			return model.License{}, ErrDeactivated
		}
		if l.OwnerID != nil {
			return l, nil
		}
		return model.License{}, ErrDeactivated
	}

	l.OwnerID = &userID
	l.ActivatedAt = &now
	return l, nil
}

// BindHwid overwrites the hardware binding of a license owned by userID.
// Passing an empty hwid clears the binding. The binding is advisory – the
// client compares exact strings, nothing here is tamper-proof.
func (s *LicenseService) BindHwid(ctx context.Context, userID, licenseID, hwid string) error {
	ok, err := s.store.SetHwid(ctx, licenseID, userID, hwid)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// AdminUpdate performs a sparse update of the provided fields only.
func (s *LicenseService) AdminUpdate(ctx context.Context, licenseID string, patch repository.LicensePatch) error {
	if patch.Empty() {
		return ErrNoFieldsProvided
	}
	ok, err := s.store.UpdateFields(ctx, licenseID, patch)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Deactivate flips is_active off. Reversible; ownership and expiry are
// untouched, so re-enabling restores activability.
func (s *LicenseService) Deactivate(ctx context.Context, licenseID string) error {
	ok, err := s.store.SetActive(ctx, licenseID, false)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete removes the license row permanently. Not a synonym for
// Deactivate – callers pick deliberately.
func (s *LicenseService) Delete(ctx context.Context, licenseID string) error {
	ok, err := s.store.Delete(ctx, licenseID)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// LicenseState is the evaluated display state of a license.
type LicenseState string

const (
	StateLifetime    LicenseState = "lifetime"
	StateActive      LicenseState = "active"
	StateExpired     LicenseState = "expired"
	StateDeactivated LicenseState = "deactivated"
)

// LicenseStatus is the result of evaluating a license against a clock.
// Remaining is only meaningful for StateActive.
type LicenseStatus struct {
	State     LicenseState
	Remaining time.Duration
}

// EvaluateStatus computes the display state of a license at a given
// instant. It is pure: expiry is evaluated on read and nothing ever
// mutates is_active in the background. Deactivation wins for display but
// is independent of the expiry computation; a lifetime license is
// reported lifetime regardless of any stray expires_at value or clock.
func EvaluateStatus(l model.License, now time.Time) LicenseStatus {
	if !l.IsActive {
		return LicenseStatus{State: StateDeactivated}
	}
	if l.DurationType != nil && *l.DurationType == model.DurationLifetime {
		return LicenseStatus{State: StateLifetime}
	}
	if l.ExpiresAt == nil {
		return LicenseStatus{State: StateLifetime}
	}
	if !l.ExpiresAt.After(now) {
		return LicenseStatus{State: StateExpired}
	}
	return LicenseStatus{State: StateActive, Remaining: l.ExpiresAt.Sub(now)}
}
