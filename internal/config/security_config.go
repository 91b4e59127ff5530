// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health - Public
	"health": SecurityPublic,

	// Auth - Public
	"auth.register": SecurityPublic,
	"auth.login":    SecurityPublic,

	// Payment gateway webhook - Public, the gateway cannot present a token
	"payments.callback": SecurityPublic,

	// Users - Access Protected
	"users.me": SecurityAccess,

	// GPUs - Access Protected
	"gpus.list":    SecurityAccess,
	"gpus.popular": SecurityAccess,
	"gpus.mine":    SecurityAccess,
	"gpus.get":     SecurityAccess,
	"gpus.create":  SecurityAccess,
	"gpus.update":  SecurityAccess,
	"gpus.delete":  SecurityAccess,
	"gpus.rentals": SecurityAccess,
	"gpus.reviews": SecurityAccess,

	// Rentals - Access Protected
	"rentals.create":         SecurityAccess,
	"rentals.list":           SecurityAccess,
	"rentals.get":            SecurityAccess,
	"rentals.approve":        SecurityAccess,
	"rentals.reject":         SecurityAccess,
	"rentals.cancel":         SecurityAccess,
	"rentals.stop":           SecurityAccess,
	"rentals.cost":           SecurityAccess,
	"rentals.payment":        SecurityAccess,
	"rentals.payment_status": SecurityAccess,

	// Reviews - Access Protected
	"reviews.create": SecurityAccess,

	// Notifications - Access Protected
	"notifications.list": SecurityAccess,
	"notifications.read": SecurityAccess,

	// Chat - Access Protected
	"chat.sessions.create": SecurityAccess,
	"chat.messages.send":   SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
