// Package verify checks downloaded files against the size and MD5 digest
// reported by the remote catalog. MD5 is not a security boundary here,
// it is simply the only digest the host publishes for its entries.
package verify
