// Package keyvault implements the KeyVault and KeyEscrow collaborators
// against HashiCorp Vault.
//
// The platform-held key components live in the KV v2 secrets engine under
// <mount>/data/<path>/components/<component-id>, each as a single
// hex-encoded "component" field of exactly 64 bytes. Re-wrapped user key
// material produced by platform recovery is escrowed under
// <mount>/data/<path>/escrow/<user>/<survey>.
//
// The client authenticates with AppRole credentials so operator machines
// never hold a long-lived Vault token.
package keyvault
