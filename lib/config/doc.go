// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for chstream
// tools.
//
// Configuration is loaded from a single file specified by either the
// CHSTREAM_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The password is the one exception: it may come from the
// CHSTREAM_PASSWORD environment variable so that credentials stay out
// of config files checked into version control. A password in the
// file still wins when both are set, since the file is the declared
// source of truth.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
package config
