// Package content turns an inbound {owner, project, version, subpath}
// request into a readable file from the mirrored version directory, with
// the content type and cache lifetime the HTTP layer should advertise.
package content
