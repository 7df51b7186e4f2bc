package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// Session keys shared with the usercontext middleware.
const (
	AUTH_KEY       string = usercontext.AuthKey
	USER_ID        string = usercontext.KeyUserID
	USER_NAME      string = usercontext.KeyUsername
	USER_IS_ADMIN  string = usercontext.KeyIsAdmin
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// jsonEngineError maps a typed engine error onto the HTTP response. Untyped
// errors become a 500 with a generic body so internals never leak.
func jsonEngineError(c *fiber.Ctx, err error) error {
	code := commerce.CodeOf(err)
	switch {
	case commerce.IsValidation(err):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": code, "message": err.Error()})
	case commerce.IsConflict(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": code, "message": err.Error()})
	case commerce.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": code, "message": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Something went wrong"})
}

// GetClientIP determines the actual client IP address considering proxies and dual stack
// Returns both IPv4 and IPv6 addresses if available
func GetClientIP(c *fiber.Ctx) (string, string) {
	// Default values
	ipv4 := ""
	ipv6 := ""

	// 1. Check for Cloudflare header
	cfIP := c.Get("CF-Connecting-IP")
	if cfIP != "" {
		// Cloudflare provides the original client IP in this header
		if strings.Contains(cfIP, ":") {
			ipv6 = cfIP

			// Look for IPv4 in X-Forwarded-For header as backup
			xffList := strings.Split(c.Get("X-Forwarded-For"), ",")
			if len(xffList) > 0 {
				for _, ip := range xffList {
					ip = strings.TrimSpace(ip)
					if !strings.Contains(ip, ":") {
						ipv4 = ip
						break
					}
				}
			}
		} else {
			ipv4 = cfIP

			// Look for IPv6 in X-Forwarded-For header as backup
			xffList := strings.Split(c.Get("X-Forwarded-For"), ",")
			if len(xffList) > 0 {
				for _, ip := range xffList {
					ip = strings.TrimSpace(ip)
					if strings.Contains(ip, ":") {
						ipv6 = ip
						break
					}
				}
			}
		}
		return ipv4, ipv6
	}

	// 2. Check for X-Forwarded-For header (standard proxy header)
	xff := c.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain a list of IPs - the first one is the original client IP
		xffList := strings.Split(xff, ",")
		if len(xffList) > 0 {
			clientIP := strings.TrimSpace(xffList[0])

			if strings.Contains(clientIP, ":") {
				ipv6 = clientIP

				for i := 1; i < len(xffList); i++ {
					ip := strings.TrimSpace(xffList[i])
					if !strings.Contains(ip, ":") {
						ipv4 = ip
						break
					}
				}
			} else {
				ipv4 = clientIP

				for i := 1; i < len(xffList); i++ {
					ip := strings.TrimSpace(xffList[i])
					if strings.Contains(ip, ":") {
						ipv6 = ip
						break
					}
				}
			}

			if ipv4 != "" && ipv6 != "" {
				return ipv4, ipv6
			}
		}
	}

	// 3. If no proxy headers were found, use the normal IP address
	ipAddr := c.IP()

	// For ::ffff: IPv4-mapped-IPv6 addresses
	if strings.Contains(ipAddr, ":") {
		if strings.Contains(ipAddr, ".") && strings.HasPrefix(ipAddr, "::ffff:") {
			// This is an IPv4 address in IPv6 format
			ipv4 = strings.TrimPrefix(ipAddr, "::ffff:")

			if realIPv6 := c.Get("X-Real-IP"); realIPv6 != "" && strings.Contains(realIPv6, ":") {
				ipv6 = realIPv6
			}
		} else {
			ipv6 = ipAddr

			realIPv4 := c.Get("X-Real-IP")
			if realIPv4 != "" && !strings.Contains(realIPv4, ":") {
				ipv4 = realIPv4
			}
		}
	} else {
		ipv4 = ipAddr

		realIPv6 := c.Get("X-Real-IP")
		if realIPv6 != "" && strings.Contains(realIPv6, ":") {
			ipv6 = realIPv6
		}
	}

	return ipv4, ipv6
}
