package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type electronParam struct {
	name    string
	integer bool
}

// electronRoute maps one HTTP endpoint to an Electron RPC method. A nil
// params list sends null; an empty one sends {}.
type electronRoute struct {
	method string
	path   string
	rpc    string
	params []electronParam
}

var (
	urlParam     = electronParam{name: "url"}
	accountParam = electronParam{name: "account_index"}
	winIDParam   = electronParam{name: "win_id", integer: true}
	codeParam    = electronParam{name: "code"}
)

var electronRouteTable = []electronRoute{
	{method: http.MethodGet, path: "/info", rpc: "info"},
	{method: http.MethodGet, path: "/getWindows", rpc: "getWindows"},
	{method: http.MethodGet, path: "/openWindow", rpc: "openWindow", params: []electronParam{urlParam, accountParam}},
	{method: http.MethodGet, path: "/loadURL", rpc: "loadURL", params: []electronParam{urlParam, winIDParam}},
	{method: http.MethodGet, path: "/getURL", rpc: "getURL", params: []electronParam{winIDParam}},
	{method: http.MethodGet, path: "/getTitle", rpc: "getTitle", params: []electronParam{winIDParam}},
	{method: http.MethodGet, path: "/reload", rpc: "reload", params: []electronParam{winIDParam}},
	{method: http.MethodGet, path: "/getUserAgent", rpc: "getUserAgent", params: []electronParam{winIDParam}},
	{method: http.MethodGet, path: "/getBounds", rpc: "getBounds", params: []electronParam{winIDParam}},
	{method: http.MethodGet, path: "/screenshot", rpc: "screenshot", params: []electronParam{winIDParam}},
	{method: http.MethodGet, path: "/executeJavaScript", rpc: "executeJavaScript", params: []electronParam{codeParam, winIDParam}},
	{method: http.MethodPost, path: "/proxy", rpc: "setProxy", params: []electronParam{urlParam, accountParam}},
	{method: http.MethodGet, path: "/proxy", rpc: "getProxy", params: []electronParam{accountParam}},
	{method: http.MethodGet, path: "/proxy/list", rpc: "proxy_list", params: []electronParam{}},
}

func (s *Server) electronRoutes(r chi.Router) {
	for _, route := range electronRouteTable {
		r.Method(route.method, route.path, s.electronHandler(route))
	}
}

func (s *Server) electronHandler(route electronRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.electron == nil {
			writeError(w, http.StatusInternalServerError, "Electron RPC not configured")
			return
		}

		var params map[string]any
		if route.params != nil {
			params = make(map[string]any, len(route.params))
		}

		q := r.URL.Query()
		for _, p := range route.params {
			raw := q.Get(p.name)
			if raw == "" {
				writeError(w, http.StatusBadRequest, p.name+" is required")
				return
			}
			if !p.integer {
				params[p.name] = raw
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, p.name+" must be an integer")
				return
			}
			params[p.name] = n
		}

		var payload any
		if params != nil {
			payload = params
		}

		reply, err := s.electron.Call(r.Context(), route.rpc, payload)
		if err != nil {
			writeInternal(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(reply)
	}
}
