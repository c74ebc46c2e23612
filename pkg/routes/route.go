// Package routes declares HTTP routes and registers them on a ServeMux.
package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler.
// Right is the permission code a caller must hold; zero leaves the route open.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	Right   int
}

// Guard wraps a handler so it only runs for callers holding right.
type Guard func(right int, next http.HandlerFunc) http.HandlerFunc
