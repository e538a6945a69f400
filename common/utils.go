package common

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// The returned string has no prefix, lower case.
func ByteSliceToHexStr(b []byte) string {
	return hex.EncodeToString(b)
}

func HexStrToByteSlice(hexStr string) ([]byte, error) {
	return hex.DecodeString(hexStr)
}

func RandBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil
	}
	return b
}

// RandTxID makes a random 32-byte identifier in hex.
// Handy to fake chain tx ids in tests and local tooling.
func RandTxID() string {
	return hex.EncodeToString(RandBytes(32))
}

// Shorten shortens a long identifier so that both sides keep n
// characters and the middle is replaced with "...".
func Shorten(str string, n int) string {
	if len(str) <= n*2 {
		return str
	}
	return str[:n] + "..." + str[len(str)-n:]
}

// NowMs is the wall clock in unix milliseconds.
// Every timestamp persisted by the bridge uses this unit.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
