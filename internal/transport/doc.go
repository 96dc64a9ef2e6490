// Package transport builds the HTTP client used for crawling.
//
// By default requests go out directly. A SOCKS5 proxy can be configured
// with WithProxy, and EmbeddedTor starts a private Tor daemon whose SOCKS
// port can be used as that proxy. CheckProxy verifies a proxy speaks
// SOCKS5 before a crawl starts so that a misconfigured proxy fails fast
// instead of turning every request into a retry.
package transport
