// Package platform resolves which remote archives a host needs.
//
// Selection is a pure lookup keyed by platform tag (and runtime variant for
// the managed runtime); it never branches elsewhere in the code base.
package platform
