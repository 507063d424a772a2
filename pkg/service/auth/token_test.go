package auth_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/service/auth"
)

func TestSignAndVerify(t *testing.T) {
	svc, err := auth.New([]byte("test-secret"))
	gt.NoError(t, err)

	token, err := svc.Sign("ops-dashboard")
	gt.NoError(t, err)

	subject, err := svc.Verify(token)
	gt.NoError(t, err)
	gt.Equal(t, subject, "ops-dashboard")
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, err := auth.New([]byte("secret-a"))
	gt.NoError(t, err)
	verifier, err := auth.New([]byte("secret-b"))
	gt.NoError(t, err)

	token, err := signer.Sign("ops-dashboard")
	gt.NoError(t, err)

	_, err = verifier.Verify(token)
	gt.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	signer, err := auth.New([]byte("test-secret"),
		auth.WithTTL(time.Hour),
		auth.WithClock(func() time.Time { return issued }),
	)
	gt.NoError(t, err)

	token, err := signer.Sign("ops-dashboard")
	gt.NoError(t, err)

	verifier, err := auth.New([]byte("test-secret"))
	gt.NoError(t, err)

	_, err = verifier.Verify(token)
	gt.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc, err := auth.New([]byte("test-secret"))
	gt.NoError(t, err)

	_, err = svc.Verify("not-a-token")
	gt.Error(t, err)
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := auth.New(nil)
	gt.Error(t, err)
}
