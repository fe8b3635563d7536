package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultTolerance bounds how far a delivery timestamp may drift from the
// verifier's clock before the signature is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

var (
	ErrSignatureMismatch         = errors.New("webhook signature mismatch")
	ErrTimestampOutsideTolerance = errors.New("webhook timestamp outside tolerance")
)

// Sign computes the hex HMAC-SHA256 digest over "{unixTimestamp}.{payload}".
func Sign(secret []byte, payload []byte, unixTimestamp int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", unixTimestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify is the consumer-side half of the signing contract: it recomputes
// the HMAC over the timestamped payload, rejects timestamps outside the
// tolerance window in either direction, and compares digests in constant
// time.
func Verify(secret []byte, payload []byte, signature string, unixTimestamp int64, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	drift := time.Since(time.Unix(unixTimestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return ErrTimestampOutsideTolerance
	}

	expected := Sign(secret, payload, unixTimestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
