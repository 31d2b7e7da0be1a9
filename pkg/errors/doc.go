// Package errors provides structured errors with stable codes for the
// device-trust service.
//
// Every outcome a caller is expected to branch on has its own code:
// AUTHENTICATION_REQUIRED maps to 401 and means the caller must log in
// again, ACCESS_RESTRICTED maps to 403 and means the request was rejected
// by policy (blacklisted IP, untrusted device). Transport handlers use
// MapErrorCodeToHTTPStatus to translate codes into HTTP statuses.
//
//	if errors.IsCode(err, errors.ErrCodeAuthenticationRequired) {
//		// redirect to login
//	}
package errors
