// Package ir provides the property value model shared by every other package.
//
// This package contains value types and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Int and Double are distinct and never compare equal across the boundary
//   - Null is an explicit value, never a nil interface in materialized rows
//   - Compound values (Array, Entity, Key, GeoPoint) have one canonical text form
//   - Timestamps carry microsecond precision, the store's resolution
package ir
