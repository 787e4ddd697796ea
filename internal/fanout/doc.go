// Package fanout delivers work item change events to subscribers.
//
// Each committed transition becomes one Event, sequenced by the hub in
// commit order. Every subscriber owns a bounded buffer; a subscriber that
// stops draining is dropped with item.ErrSubscriberOverflow so the
// coordinator's commit path never blocks on delivery. Subscriptions may
// carry an optional CEL filter expression evaluated per event.
package fanout
