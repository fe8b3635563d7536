package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"id":"evt_1","type":"transfer.submitted"}`)
	ts := time.Now().Unix()

	sig := Sign(secret, payload, ts)
	require.NoError(t, Verify(secret, payload, sig, ts, time.Minute))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	ts := time.Now().Unix()
	sig := Sign(secret, payload, ts)

	tampered := append([]byte{}, payload...)
	tampered[0] ^= 0x01
	require.ErrorIs(t, Verify(secret, tampered, sig, ts, time.Minute), ErrSignatureMismatch)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	ts := time.Now().Unix()
	sig := Sign(secret, payload, ts)

	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	require.ErrorIs(t, Verify(secret, payload, string(tampered), ts, time.Minute), ErrSignatureMismatch)
}

func TestVerifyRejectsTimestampOutsideTolerance(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"id":"evt_1"}`)

	past := time.Now().Add(-10 * time.Minute).Unix()
	require.ErrorIs(t, Verify(secret, payload, Sign(secret, payload, past), past, 5*time.Minute), ErrTimestampOutsideTolerance)

	future := time.Now().Add(10 * time.Minute).Unix()
	require.ErrorIs(t, Verify(secret, payload, Sign(secret, payload, future), future, 5*time.Minute), ErrTimestampOutsideTolerance)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	ts := time.Now().Unix()
	sig := Sign([]byte("whsec_one"), payload, ts)

	require.ErrorIs(t, Verify([]byte("whsec_two"), payload, sig, ts, time.Minute), ErrSignatureMismatch)
}
