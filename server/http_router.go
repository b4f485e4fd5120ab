package server

import (
	"sort"
	"strings"
	"sync"

	"github.com/qorebase/tiercache/types"
	"github.com/qorebase/tiercache/utils"
)

// Router matches method + path to a handler. Static paths sit in a flat
// map; paths with {param} segments go into a segment trie. Static matches
// win over parameter matches at every level.
type Router struct {
	mu           sync.RWMutex
	staticRoutes map[string]*types.RouteDefinition
	root         *routeNode
	definitions  []*types.RouteDefinition
}

type routeNode struct {
	staticChildren map[string]*routeNode
	paramChild     *routeNode
	paramName      string
	leaves         map[string]*types.RouteDefinition
}

func NewRouter() *Router {
	return &Router{
		staticRoutes: make(map[string]*types.RouteDefinition),
		root:         newRouteNode(),
	}
}

func newRouteNode() *routeNode {
	return &routeNode{
		staticChildren: make(map[string]*routeNode),
		leaves:         make(map[string]*types.RouteDefinition),
	}
}

func (r *Router) Add(method, path string, handler types.FastHTTPHandler, config *types.RouteConfig) error {
	if method == "" || path == "" || path[0] != '/' {
		return types.NewErrorf("invalid route %q %q", method, path)
	}
	if handler == nil {
		return types.NewErrorf("nil handler for route %s %s", method, path)
	}

	method = strings.ToUpper(method)
	definition := &types.RouteDefinition{
		Method:  method,
		Path:    path,
		Handler: handler,
		Config:  config,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !strings.Contains(path, "{") {
		key := method + ":" + path
		if _, exists := r.staticRoutes[key]; exists {
			return types.NewErrorf("duplicate route %s %s", method, path)
		}
		r.staticRoutes[key] = definition
		r.definitions = append(r.definitions, definition)
		return nil
	}

	node := r.root
	for _, segment := range splitPath(path) {
		if len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
			name := segment[1 : len(segment)-1]
			if node.paramChild == nil {
				node.paramChild = newRouteNode()
				node.paramChild.paramName = name
			} else if node.paramChild.paramName != name {
				return types.NewErrorf("conflicting parameter names %q and %q in route %s",
					node.paramChild.paramName, name, path)
			}
			node = node.paramChild
			continue
		}

		child, exists := node.staticChildren[segment]
		if !exists {
			child = newRouteNode()
			node.staticChildren[segment] = child
		}
		node = child
	}

	if _, exists := node.leaves[method]; exists {
		return types.NewErrorf("duplicate route %s %s", method, path)
	}
	node.leaves[method] = definition
	r.definitions = append(r.definitions, definition)

	return nil
}

func (r *Router) Lookup(method, path []byte) (types.FastHTTPHandler, *types.RouteConfig, map[string]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := utils.BytesToString(method) + ":" + utils.BytesToString(path)
	if definition, exists := r.staticRoutes[key]; exists {
		return definition.Handler, definition.Config, nil
	}

	segments := splitPath(string(path))
	var params map[string]string

	definition := findInNode(r.root, segments, 0, string(method), &params)
	if definition == nil {
		return nil, nil, nil
	}

	return definition.Handler, definition.Config, params
}

func (r *Router) Routes() []*types.RouteDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*types.RouteDefinition, len(r.definitions))
	copy(routes, r.definitions)

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	return routes
}

func findInNode(node *routeNode, segments []string, index int, method string, params *map[string]string) *types.RouteDefinition {
	if index >= len(segments) {
		return node.leaves[method]
	}

	segment := segments[index]

	if child, exists := node.staticChildren[segment]; exists {
		if definition := findInNode(child, segments, index+1, method, params); definition != nil {
			return definition
		}
	}

	if node.paramChild != nil {
		if definition := findInNode(node.paramChild, segments, index+1, method, params); definition != nil {
			if *params == nil {
				*params = make(map[string]string, 4)
			}
			(*params)[node.paramChild.paramName] = segment
			return definition
		}
	}

	return nil
}

func splitPath(path string) []string {
	if path == "/" {
		return nil
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

var _ types.HTTPRouter = (*Router)(nil)
