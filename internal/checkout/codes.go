package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNumber is "EMU", the last six digits of the millisecond clock and
// three random digits. Collisions are caught by the unique index and retried.
func NewOrderNumber(now time.Time) string {
	ms := now.UnixMilli() % 1_000_000
	return fmt.Sprintf("EMU%06d%03d", ms, randInt(1000))
}

// NewTrackingCode is "BR" followed by 11 base36 characters.
func NewTrackingCode() string {
	var b strings.Builder
	b.WriteString("BR")
	for i := 0; i < 11; i++ {
		b.WriteByte(base36[randInt(len(base36))])
	}
	return b.String()
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
