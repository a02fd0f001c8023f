// Package observability records build events as JSON Lines and derives
// build metrics and health alerts from them on demand.
package observability
