// SPDX-License-Identifier: MPL-2.0

// Package config loads vendrun configuration from a CUE file in the
// platform config directory, validates it against an embedded CUE schema,
// and exposes typed accessors with engine-ready defaults.
package config
