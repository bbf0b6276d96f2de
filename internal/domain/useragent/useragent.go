// Пакет useragent: грубая классификация клиента по заголовкам запроса:
// тип устройства, браузер, операционная система и IP-адрес.
package useragent

import (
	"net"
	"net/http"
	"strings"
)

// Типы устройств.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// Unknown: значение для нераспознанного браузера или ОС.
const Unknown = "Unknown"

var (
	mobileKeywords = []string{"mobile", "android", "iphone", "ipod", "blackberry", "iemobile", "opera mini"}
	tabletKeywords = []string{"tablet", "ipad"}
)

// Info: результат классификации.
type Info struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// Parse классифицирует строку User-Agent.
func Parse(ua string) Info {
	return Info{
		Device:  DeviceType(ua),
		Browser: Browser(ua),
		OS:      OperatingSystem(ua),
	}
}

// DeviceType определяет тип устройства. Мобильные ключевые слова
// проверяются раньше планшетных, по умолчанию: Desktop.
func DeviceType(ua string) string {
	lower := strings.ToLower(ua)
	if containsAny(lower, mobileKeywords) {
		return DeviceMobile
	}
	if containsAny(lower, tabletKeywords) {
		return DeviceTablet
	}
	return DeviceDesktop
}

// Browser определяет браузер. Порядок проверок важен:
// Edge и Opera тоже содержат "Chrome", Chrome содержит "Safari".
func Browser(ua string) string {
	switch {
	case strings.Contains(ua, "Chrome") && !strings.Contains(ua, "Edg"):
		return "Chrome"
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Safari") && !strings.Contains(ua, "Chrome"):
		return "Safari"
	case strings.Contains(ua, "Edg"):
		return "Edge"
	case strings.Contains(ua, "Opera") || strings.Contains(ua, "OPR"):
		return "Opera"
	default:
		return Unknown
	}
}

// OperatingSystem определяет операционную систему.
func OperatingSystem(ua string) string {
	switch {
	case strings.Contains(ua, "Windows NT"):
		return "Windows"
	case strings.Contains(ua, "Mac OS X") || strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return Unknown
	}
}

// ClientIP возвращает IP клиента: первый адрес X-Forwarded-For,
// затем X-Real-IP, затем адрес соединения.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
