package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Slack rejects requests whose timestamp is older than five minutes to
// defend against replayed bodies.
const replayWindow = 5 * time.Minute

// VerifySignature checks that a webhook request was signed by Slack with the
// app's signing secret. It must run against the raw body before anything is
// parsed out of it. The failure mode is a bare false either way, so a caller
// cannot leak whether the timestamp or the signature was at fault.
func VerifySignature(signingSecret string, body []byte, timestamp, signature string) bool {
	return verifySignatureAt(signingSecret, body, timestamp, signature, time.Now())
}

func verifySignatureAt(signingSecret string, body []byte, timestamp, signature string, now time.Time) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if ts < now.Unix()-int64(replayWindow.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant time and safely false on length mismatch.
	return hmac.Equal([]byte(expected), []byte(signature))
}
