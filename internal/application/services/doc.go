// Package services holds the storefront's business logic.
//
// Public flows (catalog browsing, search, newsletter signup, contact forms,
// checkout and experiment assignment) and the admin back office share the
// same services. Background work runs in two loops started by the
// ServiceManager: the outbox processor, which turns domain events into
// transactional email, and the campaign dispatcher, which sends scheduled
// broadcasts, recurring newsletters and drips.
package services
