// Package platform implements the emergency platform-recovery execution
// path. An operator holding enough custodian shares reconstructs the
// custodian-held key component, combines it with the vault-held component
// to derive the key-encryption key, re-wraps it under the user's new
// password, and escrows the result. Execution is the only transition out
// of PENDING_PLATFORM_RECOVERY and commits atomically with its audit
// entry.
//
// Plaintext key material exists only inside Execute and is zeroed before
// it returns. Audit entries record a fingerprint of the custodian
// component, never the component itself.
package platform
