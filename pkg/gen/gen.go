package gen

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UUIDGenerator func() uuid.UUID

func UUID() UUIDGenerator {
	return func() uuid.UUID {
		return uuid.New()
	}
}

func (g UUIDGenerator) Next() uuid.UUID {
	if g == nil {
		return uuid.Nil
	}

	return g()
}

// String returns the next id in its canonical text form.
func (g UUIDGenerator) String() string {
	return g.Next().String()
}

// ClientTempID issues the idempotency token a client attaches to every
// progressive save until the server has assigned a trip id:
// "temp_<unix millis>_<9 random chars>".
func ClientTempID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("temp_%d_%s", time.Now().UnixMilli(), suffix)
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var accessCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{2,20}$`)

// AccessCode returns a human-readable trip code such as "AMS_BER_QA_1208".
func AccessCode() string {
	return fmt.Sprintf("%s_%s_%s_%d",
		randomString(letters, 3),
		randomString(letters, 3),
		randomString(letters, 2),
		rand.IntN(9000)+1000,
	)
}

// FallbackAccessCode is used once AccessCode collided too many times.
func FallbackAccessCode() string {
	return "TRIP_" + randomString(alnum, 9)
}

// ValidAccessCode reports whether a client-proposed code has an acceptable shape.
func ValidAccessCode(code string) bool {
	return accessCodePattern.MatchString(code)
}

func randomString(charset string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(charset[rand.IntN(len(charset))])
	}
	return b.String()
}
