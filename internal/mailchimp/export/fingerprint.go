package export

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/ignite/listsync/internal/mailchimp"
)

// Fingerprint hashes the outbound entry payload. JSON marshaling sorts map
// keys, so two entries with the same content always hash the same.
func Fingerprint(entry *mailchimp.Entry) (string, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}
