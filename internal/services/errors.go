// Package services implements the request-reconciliation and
// notification-routing core: the Ledger, the Reconciler, the Notifier and the
// Dispatcher that delivers direct messages in the background.
//
// This file centralizes service-level error values. Translation into chat
// replies or HTTP status codes happens in the callers.
package services

import "errors"

var (
	// ErrUnsupportedKind is returned by Reconcile for kinds other than
	// movie and series. Nothing is written to the ledger.
	ErrUnsupportedKind = errors.New("unsupported request kind")

	// ErrEmptyTitle is returned when a request carries a blank title.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrPersistence wraps any failure to append to the ledger. It is the
	// only error that escapes Reconcile and Notify once work has started.
	ErrPersistence = errors.New("ledger persistence failure")

	// ErrRecipientNotFound is returned by a RecipientResolver when a
	// webhook user cannot be mapped to a chat recipient.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrDispatcherClosed is returned by Submit after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrQueueFull is returned by Submit when the delivery queue is full.
	ErrQueueFull = errors.New("notification queue full")
)
