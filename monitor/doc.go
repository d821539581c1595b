// Package monitor evaluates MoldPark's operational rules and turns the results
// into notification records, alert e-mails and health summaries.
//
// A pass walks the center, producer and admin categories in that order. Each
// category's findings are dispatched before the next category is read, so a
// failure late in the pass never loses earlier notifications. Every count is a
// separate non-locking query; counts taken during one pass are not a consistent
// snapshot of each other and may disagree by whatever changed in between.
package monitor
