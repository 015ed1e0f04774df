package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes - Login & Logout
	RouteLogin      = "/login"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"
	RouteCallback   = "/callback"

	// Protected UI Routes
	RouteDashboard = "/dashboard"

	// API Routes
	RouteAPISession       = "/api/session"
	RouteAPIIdentity      = "/api/identity"
	RouteAPIIdentityClear = "/api/identity/clear"
	RouteEventsSession    = "/events/session"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS    = "/css/{file}"
	RouteStaticJS     = "/js/{file}"
	RouteStaticImages = "/images/{file}"
	RouteFavicon      = "/favicon.ico"
)

// publicRoutes bypass the route guard. A trailing "/*" matches the prefix and
// everything below it; anything else must match exactly.
var publicRoutes = []string{
	RouteIndex,
	RouteLogin,
	"/auth/*",
	RouteCallback,
	"/css/*",
	"/js/*",
	"/images/*",
	RouteFavicon,
	RouteHealthz,
	RouteMetrics,
	"/public/*",
}
