package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/service"
	"github.com/julioborgesigt/encurtador/pkg/useragent"
)

// RedirectHandler resolves short codes into redirects.
type RedirectHandler struct {
	shortener *service.ShortenerService
	log       *zap.Logger
}

func NewRedirectHandler(shortener *service.ShortenerService, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		shortener: shortener,
		log:       log,
	}
}

// HandleRedirect resolves /{code} and issues the redirect. Not-found and
// expired links render human-readable fallback pages instead of raw
// status text.
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := strings.Trim(r.URL.Path, "/")

	if code == "" || strings.Contains(code, "/") || isSystemPath(r.URL.Path) {
		h.renderFallback(w, http.StatusNotFound, "Link not found",
			"The short link you followed does not exist.")
		return
	}

	destination, err := h.shortener.Resolve(r.Context(), code)
	if err != nil {
		switch service.KindOf(err) {
		case service.KindNotFound:
			h.log.Debug("code not found", zap.String("code", code))
			h.renderFallback(w, http.StatusNotFound, "Link not found",
				"The short link you followed does not exist.")
		case service.KindGone:
			h.log.Debug("expired link accessed", zap.String("code", code))
			h.renderFallback(w, http.StatusGone, "Link expired",
				"This link has expired and is no longer available.")
		default:
			h.log.Error("failed to process redirect", zap.String("code", code), zap.Error(err))
			h.renderFallback(w, http.StatusInternalServerError, "Something went wrong",
				"We could not process this link right now. Please try again later.")
		}
		return
	}

	userAgent := r.UserAgent()
	deviceType := classifyDevice(userAgent)

	h.log.Info("successful redirect",
		zap.String("code", code),
		zap.String("ip", extractIPAddress(r)),
		zap.String("device_type", deviceType),
		zap.String("referer", r.Referer()))

	// The destination is returned unchanged: no rewriting, no
	// trailing-slash normalization.
	http.Redirect(w, r, destination, http.StatusFound)
}

// renderFallback writes a minimal HTML error page.
func (h *RedirectHandler) renderFallback(w http.ResponseWriter, statusCode int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h1>%s</h1>
<p>%s</p>
<p><a href="/">Create a new short link</a></p>
</body>
</html>
`, title, title, message)
}

// isSystemPath guards API and operational paths from being treated as
// short codes.
func isSystemPath(path string) bool {
	systemPrefixes := []string{
		"/api/",
		"/auth/",
		"/health",
		"/ready",
		"/static/",
		"/assets/",
	}

	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// classifyDevice uses the uap parser when available, falling back to the
// keyword matcher.
func classifyDevice(userAgent string) string {
	if parser := useragent.GetGlobalParser(); parser != nil {
		return parser.ParseUserAgent(userAgent).DeviceType
	}
	return useragent.DetectDeviceType(userAgent)
}

// extractIPAddress extracts the client IP, honoring proxy headers.
func extractIPAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
