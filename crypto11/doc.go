// Package crypto11 drives a native PKCS#11 module with PKCS#11 URIs.
//
// The package covers the module side of a URI lookup:
//   - loading and releasing a vendor library resolved from module-path or module-name
//   - enumerating slots and tokens, and selecting the ones a URI matches
//   - opening sessions, logging in, and finding the objects a URI identifies
//   - reading single attributes without failing on sensitive values
//
// Cryptographic operations are out of scope: the native module performs them.
package crypto11
