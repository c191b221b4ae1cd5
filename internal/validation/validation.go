// Package validation implements the pure input checks that gate link
// creation: URL well-formedness, custom code rules, and field limits.
package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	ShortCodeMinLength   = 3
	ShortCodeMaxLength   = 30
	DescriptionMaxLength = 255
)

var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrBlockedHost        = errors.New("blocked host")
	ErrInvalidCode        = errors.New("invalid custom code")
	ErrReservedCode       = errors.New("reserved code")
	ErrDescriptionTooLong = errors.New("description too long")
)

// reservedCodes are operational path segments that can never be claimed as
// custom codes.
var reservedCodes = map[string]bool{
	"api":       true,
	"admin":     true,
	"public":    true,
	"static":    true,
	"assets":    true,
	"health":    true,
	"status":    true,
	"auth":      true,
	"dashboard": true,
	"settings":  true,
	"login":     true,
	"logout":    true,
	"register":  true,
	"bio":       true,
	"docs":      true,
	"swagger":   true,
}

// blockedHosts are loopback hostnames rejected in production.
var blockedHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// ValidateURL checks that candidate parses as an absolute http(s) URL. In
// the "production" environment it additionally rejects loopback hostnames
// and private-range IPv4 literals.
//
// The host check is lexical on the hostname string, not a DNS lookup: a
// public hostname that resolves to a private address at request time is not
// caught here.
func ValidateURL(candidate string, env string) error {
	if candidate == "" {
		return ErrInvalidURL
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return ErrInvalidURL
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https URLs are allowed", ErrInvalidURL)
	}

	if u.Hostname() == "" {
		return ErrInvalidURL
	}

	if env == "production" {
		hostname := strings.ToLower(u.Hostname())

		if blockedHosts[hostname] {
			return fmt.Errorf("%w: localhost URLs are not allowed", ErrBlockedHost)
		}

		if isPrivateIPLiteral(hostname) {
			return fmt.Errorf("%w: private IP URLs are not allowed", ErrBlockedHost)
		}
	}

	return nil
}

// isPrivateIPLiteral reports whether hostname is an IPv4 literal inside
// 10.0.0.0/8, 172.16.0.0/12 or 192.168.0.0/16.
func isPrivateIPLiteral(hostname string) bool {
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	v4 := ip.To4()
	if v4 == nil {
		return false
	}

	switch {
	case v4[0] == 10:
		return true
	case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
		return true
	case v4[0] == 192 && v4[1] == 168:
		return true
	}
	return false
}

// ValidateCustomCode checks charset, length and the reserved-word list.
// An empty code is valid: one will be generated.
func ValidateCustomCode(code string) error {
	if code == "" {
		return nil
	}

	if len(code) < ShortCodeMinLength || len(code) > ShortCodeMaxLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidCode, ShortCodeMinLength, ShortCodeMaxLength)
	}

	for _, r := range code {
		if !isCodeRune(r) {
			return fmt.Errorf("%w: use only letters, digits and hyphens", ErrInvalidCode)
		}
	}

	if reservedCodes[strings.ToLower(code)] {
		return ErrReservedCode
	}

	return nil
}

func isCodeRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-'
}

// ValidateDescription enforces the description cap.
func ValidateDescription(description string) error {
	if len(description) > DescriptionMaxLength {
		return fmt.Errorf("%w: maximum is %d characters", ErrDescriptionTooLong, DescriptionMaxLength)
	}
	return nil
}

// ValidateCreate validates a creation request and returns a map of field
// names to messages. The map is empty when everything passed. No I/O
// happens here.
func ValidateCreate(originalURL, customCode, description string, expiresIn *int, env string) map[string]string {
	fields := make(map[string]string)

	if err := ValidateURL(originalURL, env); err != nil {
		fields["url"] = err.Error()
	}

	if customCode != "" {
		if err := ValidateCustomCode(customCode); err != nil {
			fields["customCode"] = err.Error()
		}
	}

	if description != "" {
		if err := ValidateDescription(description); err != nil {
			fields["description"] = err.Error()
		}
	}

	if expiresIn != nil && *expiresIn < 0 {
		fields["expiresIn"] = "invalid expiration value"
	}

	return fields
}
