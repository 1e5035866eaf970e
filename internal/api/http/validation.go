package http

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Request size limits
const (
	MaxURLLength   = 8 * 1024
	MaxScriptSize  = 256 * 1024      // 256KB
	MaxDataSize    = 4 * 1024 * 1024 // 4MB - LoadData payload
	MaxQueryLength = 1024
	MaxHostLength  = 253
	MaxCredential  = 256
)

// HostPattern allows DNS names, IPv4 and bracketed IPv6, with an optional port
var HostPattern = regexp.MustCompile(`^(\[[0-9a-fA-F:.]+\]|[a-zA-Z0-9.-]+)(:[0-9]{1,5})?$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
	if utf8.RuneCountInString(value) > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateHost validates a host[:port] field
func ValidateHost(host string) error {
	if err := ValidateString(host, "host", MaxHostLength, true); err != nil {
		return err
	}
	if !HostPattern.MatchString(host) {
		return fmt.Errorf("host %q is not a valid host name", host)
	}
	return nil
}

// ValidateSize checks a payload against a byte limit
func ValidateSize(value, fieldName string, maxSize int) error {
	if len(value) > maxSize {
		return fmt.Errorf("%s size %d bytes exceeds maximum %d bytes", fieldName, len(value), maxSize)
	}
	return nil
}
