// Package execution runs a command against a device and keeps the audit
// trail honest about it.
//
// An execution is one dispatch to the device gateway followed, on success,
// by a status update (the Reconciler) and, always, by exactly one audit
// entry (the AuditRecorder). Nothing is retried: the physical device may
// already have acted, so a failed status or audit write is reported to the
// caller as a *PersistenceError next to a valid Result.
//
// History is the read side: recent audit entries joined to the current
// device name and command label, tolerating records deleted since.
package execution
