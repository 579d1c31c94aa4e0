// Package progress derives display state from challenges and contributions.
//
// Every function here is pure and total: degenerate input (zero or negative
// goals, empty contribution sets, deadlines before creation) degrades to
// defined defaults (0%, not on track, zero streak) instead of failing, since
// the results feed always-rendered views.
//
// # Week buckets
//
// Streaks group contributions into week buckets of days-since-year-start / 7
// (floored). This is an approximation of ISO weeks, not calendar-exact: the
// final bucket of a year may hold one or two days. For walks that span a
// year boundary, buckets are linearized as year*53 + bucket so that the last
// bucket of one year and the first of the next are consecutive.
package progress
