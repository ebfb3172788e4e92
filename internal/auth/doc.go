// Package auth verifies merchant credentials and issues new ones.
//
// Credentials are HS256 JSON Web Tokens carrying a merchantId claim. The same
// shared secret signs and verifies them. Tenant-scoped endpoints read the
// token either from an "Authorization: Bearer" header or from the "token"
// query parameter (EventSource clients cannot set headers). The credential
// minting endpoint is guarded by a separate administrative secret sent in the
// X-Admin-Secret header.
package auth
