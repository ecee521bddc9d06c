// Package tenant derives tenant identity from the request hostname and
// fetches and caches tenant display metadata. One school is one tenant,
// addressed by subdomain.
package tenant
