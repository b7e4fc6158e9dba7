// Package uri implements the PKCS#11 URI scheme defined in RFC 7512.
//
// A PKCS#11 URI identifies a library, slot, token or object exposed by a
// Cryptoki module:
//
//	pkcs11:token=My%20token;object=signer;type=private?pin-source=file:/etc/pin
//
// The package provides:
//   - Parse and ParseWithOptions to decode and validate a URI into an immutable URI value
//   - Builder to assemble a URI from typed values and serialize it in canonical order
//   - MatchesLibrary, MatchesSlot, MatchesToken and MatchesObject to test live
//     module facts against the constraints of a URI
//
// Every error returned by the parser and the builder is marked with ErrInvalid.
//
// The package does no I/O and holds no shared state, parsing and building
// are safe to use from multiple goroutines.
package uri
