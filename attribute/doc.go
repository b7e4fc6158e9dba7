// Package attribute provides the binding-layer model of PKCS#11 attributes:
// the CK_ULONG layout of the native module, typed attribute values,
// and the outcome of reading a single attribute.
package attribute
