package utils

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	LogFileName = "libwallet.log"

	// UserFilePerm is the permission used for the directories created by the
	// library.
	UserFilePerm = os.FileMode(0o700)

	// DefaultLogLevel is used when no debug level is configured.
	DefaultLogLevel = "info"

	fullDateformat = "2006-01-02 15:04:05"
	dateOnlyFormat = "2006-01-02"
	timeOnlyformat = "15:04:05"
)

// ExtractDateOrTime returns the date represented by the timestamp as a date string
// if the timestamp is over 24 hours ago. Otherwise, the time alone is returned as a string.
func ExtractDateOrTime(timestamp int64) string {
	utcTime := time.Unix(timestamp, 0).UTC()
	if time.Now().UTC().Sub(utcTime).Hours() > 24 {
		return utcTime.Format(dateOnlyFormat)
	}
	return utcTime.Format(timeOnlyformat)
}

func FormatUTCTime(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format(fullDateformat)
}

// ShortAddress abbreviates an address to 0x1234...abcd for display.
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// ShortHash abbreviates a transaction hash for display.
func ShortHash(hash common.Hash) string {
	return hash.Hex()[:10] + "..."
}

// ParseAddress validates and converts a 0x-prefixed hex address.
func ParseAddress(str string) (common.Address, bool) {
	str = strings.TrimSpace(str)
	if !common.IsHexAddress(str) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(str)
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}
