// Package server hosts the Fiber HTTP service: the middleware chain
// (panic recovery, request IDs, static files) and the shared outbound
// HTTP clients used by the link resolver and the COG range proxy.
// Route handlers live in the routes subpackage and in internal/proxy;
// this package only exposes the app constructor and the injection
// interfaces they share, so keep exports narrow and accept explicit
// dependencies.
package server
