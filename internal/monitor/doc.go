// Package monitor is the catalog diff and notification engine.
//
// Per cycle: fetch the catalog, normalize every record, fan the products
// out across a bounded worker pool (diff against stored state, dispatch
// alerts, commit fresh sizes), wait for the barrier, persist the store
// once, sleep. A failed fetch backs off with a short fixed delay; no error
// of any kind terminates the loop.
package monitor
