// Package http provides the HTTP surface for lockerd.
//
// The API is cookie-session based: register and login establish a
// server-side session carried by an HMAC-signed, HttpOnly, Secure,
// SameSite=None cookie; the file routes (/upload, /files, /file/{name})
// require a live session and operate only on the authenticated user's
// storage namespace.
//
// # Endpoints
//
//	GET    /              service banner
//	GET    /healthz       liveness probe
//	POST   /register      create account + session
//	POST   /login         verify credentials + session
//	POST   /logout        destroy session
//	POST   /upload        multipart upload (gated)
//	GET    /files         list stored file names (gated)
//	GET    /file/{name}   presigned download URL (gated)
//	DELETE /file/{name}   delete stored file (gated)
//
// # Error shape
//
// Credential and session failures return {"success":false} with an
// optional error message. Listing failures degrade to an empty array and
// link-generation failures to {"url":null}; upload and delete failures are
// explicit {"success":false} responses. Unauthenticated requests to gated
// routes get 401 {"success":false,"error":"Login required"} without
// reaching the storage backend.
package http
