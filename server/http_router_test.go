package server

import (
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/qorebase/tiercache/types"
)

func noopHandler(*fasthttp.RequestCtx) {}

func TestRouterStaticMatch(t *testing.T) {
	router := NewRouter()

	if err := router.Add("GET", "/bookings", noopHandler, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	handler, _, params := router.Lookup([]byte("GET"), []byte("/bookings"))
	if handler == nil {
		t.Fatal("static route not found")
	}
	if params != nil {
		t.Fatalf("static match produced params %v", params)
	}

	if handler, _, _ := router.Lookup([]byte("POST"), []byte("/bookings")); handler != nil {
		t.Fatal("wrong method matched")
	}
	if handler, _, _ := router.Lookup([]byte("GET"), []byte("/missing")); handler != nil {
		t.Fatal("unknown path matched")
	}
}

func TestRouterParamMatch(t *testing.T) {
	router := NewRouter()

	if err := router.Add("GET", "/bookings/{id}", noopHandler, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := router.Add("GET", "/tenants/{tenant}/bookings/{id}", noopHandler, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	handler, _, params := router.Lookup([]byte("GET"), []byte("/bookings/42"))
	if handler == nil {
		t.Fatal("param route not found")
	}
	if params["id"] != "42" {
		t.Fatalf("params = %v, want id=42", params)
	}

	handler, _, params = router.Lookup([]byte("GET"), []byte("/tenants/acme/bookings/7"))
	if handler == nil {
		t.Fatal("nested param route not found")
	}
	if params["tenant"] != "acme" || params["id"] != "7" {
		t.Fatalf("params = %v, want tenant=acme id=7", params)
	}

	if handler, _, _ := router.Lookup([]byte("GET"), []byte("/bookings/42/extra")); handler != nil {
		t.Fatal("over-long path matched")
	}
}

func TestRouterStaticWinsOverParam(t *testing.T) {
	router := NewRouter()

	var matched string
	router.Add("GET", "/bookings/{id}", func(*fasthttp.RequestCtx) { matched = "param" }, nil)
	router.Add("GET", "/bookings/stats", func(*fasthttp.RequestCtx) { matched = "static" }, nil)

	handler, _, params := router.Lookup([]byte("GET"), []byte("/bookings/stats"))
	if handler == nil {
		t.Fatal("route not found")
	}
	handler(nil)
	if matched != "static" {
		t.Fatalf("matched %q, want static", matched)
	}
	if params != nil {
		t.Fatalf("static match produced params %v", params)
	}
}

func TestRouterAddValidation(t *testing.T) {
	router := NewRouter()

	if err := router.Add("GET", "no-slash", noopHandler, nil); err == nil {
		t.Fatal("relative path accepted")
	}
	if err := router.Add("", "/x", noopHandler, nil); err == nil {
		t.Fatal("empty method accepted")
	}
	if err := router.Add("GET", "/x", nil, nil); err == nil {
		t.Fatal("nil handler accepted")
	}

	if err := router.Add("GET", "/x", noopHandler, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := router.Add("get", "/x", noopHandler, nil); err == nil {
		t.Fatal("duplicate static route accepted")
	}

	if err := router.Add("GET", "/y/{id}", noopHandler, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := router.Add("GET", "/y/{id}", noopHandler, nil); err == nil {
		t.Fatal("duplicate param route accepted")
	}
	if err := router.Add("POST", "/y/{name}", noopHandler, nil); err == nil {
		t.Fatal("conflicting parameter name accepted")
	}
}

func TestRouterRouteConfigPassthrough(t *testing.T) {
	router := NewRouter()

	config := &types.RouteConfig{
		Cache: &types.CacheRouteConfig{Enabled: true, Category: "bookings"},
	}
	router.Add("GET", "/bookings", noopHandler, config)

	_, got, _ := router.Lookup([]byte("GET"), []byte("/bookings"))
	if got != config {
		t.Fatal("route config not returned by lookup")
	}
}

func TestRouterRoutesSorted(t *testing.T) {
	router := NewRouter()

	router.Add("POST", "/b", noopHandler, nil)
	router.Add("GET", "/a", noopHandler, nil)
	router.Add("GET", "/b", noopHandler, nil)

	routes := router.Routes()
	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(routes))
	}
	if routes[0].Path != "/a" || routes[1].Method != "GET" || routes[2].Method != "POST" {
		t.Fatalf("unexpected ordering: %v %v %v", routes[0], routes[1], routes[2])
	}
}
