// Package httpmsg holds the request and response values that flow between
// the dispatch core and controllers.
//
// A Request is an immutable snapshot of what the network engine received. A
// Response is built by a controller and written back by the core. Both convert
// to and from net/http types so that ordinary http.Handlers can run inside a
// controller:
//
//	resp := httpmsg.NewResponse()
//	handler.ServeHTTP(resp.Writer(), req.HTTPRequest())
package httpmsg
