package tenantauth

import (
	"context"
	"errors"
	"fmt"
)

// ProvisionMFA generates a TOTP secret for the user and stores it encrypted
// under the tenant's active key. MFA stays disabled until the user proves
// possession through [Engine.ConfirmMFA]; a login between the two calls
// does not demand a code.
//
// The returned [MFAProvision] is the only place the plaintext secret ever
// appears.
func (e *Engine) ProvisionMFA(ctx context.Context, tenantID, userID string) (*MFAProvision, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	var provision *MFAProvision
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		user, err := e.lookupUser(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		if user.MFAEnabled {
			return ErrMFAAlreadyEnabled
		}

		raw, secretBase32, err := e.totp.GenerateSecret()
		if err != nil {
			return fmt.Errorf("%w: generate mfa secret: %v", ErrAuthUnavailable, err)
		}

		if _, err := e.tenantKeys.GetOrCreate(ctx, tenantID); err != nil {
			return err
		}
		envelope, err := e.tenantKeys.EncryptField(ctx, tenantID, raw)
		if err != nil {
			return err
		}

		if err := e.userProvider.StoreMFASecret(ctx, tenantID, userID, envelope); err != nil {
			return fmt.Errorf("%w: store mfa secret: %v", ErrAuthUnavailable, err)
		}

		provision = &MFAProvision{
			SecretBase32: secretBase32,
			URI:          e.totp.ProvisionURI(secretBase32, user.Email),
		}
		return nil
	})

	e.emitAudit(ctx, auditEventMFAProvisioned, err == nil, userID, tenantID, "", err, nil)
	return provision, err
}

// ConfirmMFA verifies a code against the provisioned secret and switches
// MFA on for the account. From the next login onward a code is required.
func (e *Engine) ConfirmMFA(ctx context.Context, tenantID, userID, code string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	err := e.guard.Do(ctx, func(ctx context.Context) error {
		user, err := e.lookupUser(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		if user.MFAEnabled {
			return ErrMFAAlreadyEnabled
		}
		if user.MFASecret == "" {
			return ErrMFANotEnabled
		}

		if err := e.verifyMFACode(ctx, user, code); err != nil {
			return err
		}

		if err := e.userProvider.SetMFAEnabled(ctx, tenantID, userID, true); err != nil {
			return fmt.Errorf("%w: enable mfa: %v", ErrAuthUnavailable, err)
		}
		return nil
	})

	if err == nil {
		e.metricInc(MetricMFASuccess)
	} else if errors.Is(err, ErrMFAInvalid) {
		e.metricInc(MetricMFAFailure)
	}
	e.emitAudit(ctx, auditEventMFAEnabled, err == nil, userID, tenantID, "", err, nil)
	return err
}

// DisableMFA turns MFA off for the account. A valid current code is
// required so a stolen session cannot silently strip the second factor.
func (e *Engine) DisableMFA(ctx context.Context, tenantID, userID, code string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	err := e.guard.Do(ctx, func(ctx context.Context) error {
		user, err := e.lookupUser(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		if !user.MFAEnabled {
			return ErrMFANotEnabled
		}

		if err := e.verifyMFACode(ctx, user, code); err != nil {
			return err
		}

		if err := e.userProvider.SetMFAEnabled(ctx, tenantID, userID, false); err != nil {
			return fmt.Errorf("%w: disable mfa: %v", ErrAuthUnavailable, err)
		}
		return nil
	})

	e.emitAudit(ctx, auditEventMFADisabled, err == nil, userID, tenantID, "", err, nil)
	return err
}

// RotateTenantKey mints a new encryption key version for the tenant and
// makes it active. Fields sealed under earlier versions stay readable.
func (e *Engine) RotateTenantKey(ctx context.Context, tenantID string) (uint32, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	var version uint32
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		if _, err := e.tenantKeys.GetOrCreate(ctx, tenantID); err != nil {
			return err
		}
		var rotateErr error
		version, rotateErr = e.tenantKeys.Rotate(ctx, tenantID)
		return rotateErr
	})

	if err == nil {
		e.metricInc(MetricKeyRotation)
	}
	e.emitAudit(ctx, auditEventKeyRotation, err == nil, "", tenantID, "", err, func() map[string]string {
		return map[string]string{"version": fmt.Sprintf("%d", version)}
	})
	return version, err
}

func (e *Engine) lookupUser(ctx context.Context, tenantID, userID string) (*UserRecord, error) {
	user, err := e.userProvider.GetUserByID(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: user lookup: %v", ErrAuthUnavailable, err)
	}
	if user.TenantID != tenantID {
		return nil, ErrUserNotFound
	}
	return user, nil
}
