// Package shared holds code used across packages that belongs to no single
// layer. The testutil subpackage provides log capture and dataset fixtures
// for tests.
package shared
