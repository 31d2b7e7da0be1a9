// Package device implements the device registry: fingerprinted devices
// registered per user, a cap on concurrently active devices with least
// recently used eviction, and the pending/trusted/untrusted trust
// lifecycle.
//
// Registration always pairs the device with a session. For a new device
// the pair is written atomically; deleting or evicting a device removes
// its sessions in the same operation.
package device
