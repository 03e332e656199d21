// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the hub registry that maps a Host header to one archive mirror. Each
// hub owns its own cache root, upstream client and fetch coordinator, built
// once at startup by HubRegistry.Bootstrap and shared by every request.
package server
