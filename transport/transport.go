// Package transport wraps gateway HTTP routes as queryfx callers, built on
// resty. Each caller sends the request as a JSON body, decodes a 2xx reply
// into the response type, and maps non-2xx replies onto the structured
// service error shape when the body carries one.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/unkn0wn-root/queryfx"
)

// NewClient builds a resty client for gateway traffic. A zero timeout
// leaves the client unbounded; per-call deadlines still apply through ctx.
func NewClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// NewCaller wraps one gateway route as a queryfx.Caller. verb is the HTTP
// method (an empty verb means POST, the common case for RPC-style routes);
// path is joined to the CallOptions base path at call time. GET and HEAD
// send no body.
func NewCaller[Req, Resp any](client *resty.Client, verb, path string) queryfx.Caller[Req, Resp] {
	return NewCallerFunc[Req, Resp](client, verb, func(Req) string { return path })
}

// NewCallerFunc is NewCaller with a request-derived path, for routes that
// embed identifiers ("/v1/users/" + req.ID).
func NewCallerFunc[Req, Resp any](client *resty.Client, verb string, path func(Req) string) queryfx.Caller[Req, Resp] {
	return func(ctx context.Context, req Req, opts queryfx.CallOptions) (Resp, error) {
		var out Resp
		r := client.R().SetContext(ctx)
		if len(opts.Header) > 0 {
			r.SetHeaderMultiValues(opts.Header)
		}
		if cred := opts.Credentials; cred.Token != "" {
			r.SetAuthToken(cred.Token)
		} else if cred.Username != "" {
			r.SetBasicAuth(cred.Username, cred.Password)
		}
		if verb != http.MethodGet && verb != http.MethodHead {
			r.SetBody(req)
		}
		r.SetResult(&out)

		res, err := do(r, verb, joinURL(opts.BasePath, path(req)))
		if err != nil {
			return out, err
		}
		if res.IsError() {
			return out, decodeError(res.StatusCode(), res.String())
		}
		return out, nil
	}
}

func do(r *resty.Request, verb, url string) (*resty.Response, error) {
	switch verb {
	case http.MethodPost, "":
		return r.Post(url)
	case http.MethodGet:
		return r.Get(url)
	case http.MethodPut:
		return r.Put(url)
	case http.MethodPatch:
		return r.Patch(url)
	case http.MethodDelete:
		return r.Delete(url)
	case http.MethodHead:
		return r.Head(url)
	default:
		return nil, fmt.Errorf("queryfx: transport: unsupported verb %q", verb)
	}
}

// decodeError prefers the structured error shape; anything else becomes a
// generic failure carrying the status code.
func decodeError(status int, body string) error {
	var se queryfx.ServiceError
	if err := json.Unmarshal([]byte(body), &se); err == nil && (se.Code != 0 || se.Message != "") {
		return &se
	}
	return fmt.Errorf("queryfx: transport: http %d", status)
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
