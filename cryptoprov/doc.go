// Package cryptoprov provides PKCS#11 token configuration.
//
// A token configuration names the module library, identifies the token by
// serial number or label, and carries the PIN to access it.
// Configurations are loaded from YAML or JSON files, and can be converted
// to and from PKCS#11 URIs.
package cryptoprov
