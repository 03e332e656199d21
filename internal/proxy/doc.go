// Package proxy adapts the content pipeline to Fiber: it parses
// /owner/project/version/subpath, asks the hub's content.Resolver for the
// file and writes it back with immutable caching headers.
package proxy
