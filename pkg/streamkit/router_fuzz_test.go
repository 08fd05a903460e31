package streamkit

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// FuzzRouterPaths fuzzes Router.Match path lookup with random inputs,
// ported from the teacher's test/fuzzy/router_fuzz_test.go FuzzRouterPaths
// onto this package's trie Router.
func FuzzRouterPaths(f *testing.F) {
	f.Add("/")
	f.Add("/test")
	f.Add("/users/123")
	f.Add("/api/v1/users/123/posts/456")
	f.Add("//double//slash")
	f.Add("/trailing/")
	f.Add("/with%20spaces")
	f.Add("/symbols/!@#$%^&*()")
	f.Add("/very/long/" + strings.Repeat("segment/", 50))
	f.Add("/with/../dots")
	f.Add("/with/./dot")
	f.Add("")
	f.Add("no-leading-slash")
	f.Add("/with\nnewline")
	f.Add("/with\ttab")

	r := NewRouter()
	r.GET("/", dummyHandler("root"))
	r.GET("/test", dummyHandler("test"))
	r.GET("/users/:id", dummyHandler("user"))
	r.GET("/api/v1/users/:userId/posts/:postId", dummyHandler("post"))
	r.Handle("get", "/files/*path", dummyHandler("files"))

	f.Fuzz(func(t *testing.T, path string) {
		if !utf8.ValidString(path) {
			t.Skip("invalid UTF-8")
		}

		defer func() {
			if rec := recover(); rec != nil {
				t.Errorf("Match panicked with path %q: %v", path, rec)
			}
		}()

		_, _ = r.Match("GET", path)
	})
}

// FuzzRouterMethods fuzzes Router.Match with random HTTP methods, ported
// from FuzzRouterMethods.
func FuzzRouterMethods(f *testing.F) {
	f.Add("GET")
	f.Add("POST")
	f.Add("get")
	f.Add("")
	f.Add("INVALID")

	r := NewRouter()
	r.GET("/test", dummyHandler("get"))
	r.POST("/test", dummyHandler("post"))

	f.Fuzz(func(t *testing.T, method string) {
		if !utf8.ValidString(method) {
			t.Skip("invalid UTF-8")
		}

		defer func() {
			if rec := recover(); rec != nil {
				t.Errorf("Match panicked with method %q: %v", method, rec)
			}
		}()

		_, _ = r.Match(method, "/test")
	})
}

// FuzzRouteParameters fuzzes parameter extraction for a :id segment, ported
// from FuzzRouteParameters.
func FuzzRouteParameters(f *testing.F) {
	f.Add("123")
	f.Add("abc")
	f.Add("user-name")
	f.Add("")
	f.Add(strings.Repeat("a", 1000))
	f.Add("../../../etc/passwd")

	r := NewRouter()
	r.GET("/users/:id", dummyHandler("user"))

	f.Fuzz(func(t *testing.T, paramValue string) {
		if !utf8.ValidString(paramValue) {
			t.Skip("invalid UTF-8")
		}

		defer func() {
			if rec := recover(); rec != nil {
				t.Errorf("Match panicked with param %q: %v", paramValue, rec)
			}
		}()

		_, _ = r.Match("GET", "/users/"+paramValue)
	})
}

// FuzzRouteDefinition fuzzes route registration with random patterns,
// ported from FuzzRouteDefinition. Handle panics on a path that doesn't
// start with '/' (streamkit's explicit contract), so a panic here is
// logged rather than failed, matching the teacher's tolerance for the
// same case.
func FuzzRouteDefinition(f *testing.F) {
	f.Add("/test")
	f.Add("/users/:id")
	f.Add("/files/*path")
	f.Add("/:param1/:param2")
	f.Add("")
	f.Add("no-slash")

	f.Fuzz(func(t *testing.T, routePattern string) {
		if !utf8.ValidString(routePattern) {
			t.Skip("invalid UTF-8")
		}
		if len(routePattern) > 1000 {
			t.Skip("route pattern too long")
		}

		defer func() {
			if rec := recover(); rec != nil {
				t.Logf("Handle panicked registering route %q: %v", routePattern, rec)
			}
		}()

		r := NewRouter()
		r.GET(routePattern, dummyHandler("ok"))
	})
}
