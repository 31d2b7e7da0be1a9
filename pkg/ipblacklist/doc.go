// Package ipblacklist stores blocked source addresses.
//
// The session validator consults it before any other check; a non-expired
// entry rejects the request outright. Expired entries stop blocking
// immediately without a background sweep.
package ipblacklist
