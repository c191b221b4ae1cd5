// Package useragent classifies redirect User-Agents for structured logging.
package useragent

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Parser wraps the uap-go parser with a coarse device-type classifier.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo represents parsed device information.
type DeviceInfo struct {
	DeviceType string // mobile, tablet, desktop, bot, unknown
	Browser    string
	OS         string
}

var (
	globalParser *Parser
	once         sync.Once
)

// NewParser creates a parser from a uap-core regexes file.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	if _, err := os.Stat(regexFilePath); err != nil {
		return nil, fmt.Errorf("regexes file not found at %s: %w", regexFilePath, err)
	}

	parser, err := uaparser.New(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
	}

	log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))
	return &Parser{parser: parser, log: log}, nil
}

// InitGlobalParser initializes the process-wide parser instance.
func InitGlobalParser(regexFilePath string, log *zap.Logger) error {
	var err error
	once.Do(func() {
		globalParser, err = NewParser(regexFilePath, log)
	})
	return err
}

// GetGlobalParser returns the singleton instance, or nil if it never
// initialized; callers fall back to DetectDeviceType.
func GetGlobalParser() *Parser {
	return globalParser
}

// ParseUserAgent parses a User-Agent string into device information.
func (p *Parser) ParseUserAgent(userAgent string) *DeviceInfo {
	if userAgent == "" {
		return &DeviceInfo{DeviceType: "unknown", Browser: "unknown", OS: "unknown"}
	}

	client := p.parser.Parse(userAgent)

	info := &DeviceInfo{
		Browser: orUnknown(client.UserAgent.Family),
		OS:      orUnknown(client.Os.Family),
	}

	switch {
	case strings.Contains(strings.ToLower(client.Device.Family), "spider"),
		strings.Contains(strings.ToLower(client.UserAgent.Family), "bot"):
		info.DeviceType = "bot"
	case client.Device.Family != "" && client.Device.Family != "Other":
		info.DeviceType = DetectDeviceType(userAgent)
	default:
		info.DeviceType = DetectDeviceType(userAgent)
	}

	return info
}

// DetectDeviceType is a keyword-based fallback classifier used when no
// regexes file is available.
func DetectDeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, keyword := range []string{"tablet", "ipad", "kindle", "silk", "playbook"} {
		if strings.Contains(ua, keyword) {
			return "tablet"
		}
	}

	for _, keyword := range []string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone", "opera mini"} {
		if strings.Contains(ua, keyword) {
			return "mobile"
		}
	}

	for _, keyword := range []string{"bot", "crawler", "spider", "curl", "wget"} {
		if strings.Contains(ua, keyword) {
			return "bot"
		}
	}

	return "desktop"
}

func orUnknown(s string) string {
	if s == "" || s == "Other" {
		return "unknown"
	}
	return s
}
