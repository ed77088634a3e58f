package ids

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Length is the length of record IDs.
const Length = 8

// encoding is lowercase base32 without the letters easily misread as digits.
var encoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// New returns an ID for a record created at now. The hash covers a random
// UUID, so records created in the same instant still differ.
func New(now time.Time) string {
	seed := uuid.New()
	var buf [8 + len(seed)]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(now.UnixNano()))
	copy(buf[8:], seed[:])
	sum := sha256.Sum256(buf[:])
	return encoding.EncodeToString(sum[:])[:Length]
}
