package routes

import "net/http"

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux. Routes that
// declare a Right are wrapped with guard; a nil guard registers them unwrapped.
func Register(mux *http.ServeMux, guard Guard, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, guard, "", group)
	}
}

// Patterns returns the "METHOD /path" pattern of every route in the groups.
func Patterns(groups ...Group) []string {
	var out []string
	for _, g := range groups {
		out = collect(out, "", g)
	}
	return out
}

func collect(out []string, parentPrefix string, group Group) []string {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		out = append(out, route.Method+" "+fullPrefix+route.Pattern)
	}
	for _, child := range group.Children {
		out = collect(out, fullPrefix, child)
	}
	return out
}

func registerGroup(mux *http.ServeMux, guard Guard, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		pattern := route.Method + " " + fullPrefix + route.Pattern
		handler := route.Handler
		if route.Right != 0 && guard != nil {
			handler = guard(route.Right, handler)
		}
		mux.HandleFunc(pattern, handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, guard, fullPrefix, child)
	}
}
