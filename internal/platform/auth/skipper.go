package auth

// publicPaths bypass authentication and tenant binding: health probes,
// metrics, the credential exchange endpoints and API documentation.
var publicPaths = map[string]bool{
	"/":                     true,
	"/health":               true,
	"/health/db":            true,
	"/metrics":              true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/register": true,
	"/api/v1/docs":          true,
	"/api/v1/redoc":         true,
	"/api/v1/openapi.json":  true,
}

// IsPublicPath reports whether path is reachable without credentials.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
