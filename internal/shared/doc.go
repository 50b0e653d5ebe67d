// Package shared holds code used across packages that belongs to no single
// layer. At present that is only the testutil subpackage: a capturing slog
// handler and builders for metrics file fixtures.
package shared
