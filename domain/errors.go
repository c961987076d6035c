// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "errors"

// ErrConfigurationConflict is returned for option combinations that cannot
// work, before any file or network I/O happens.
var ErrConfigurationConflict = errors.New("configuration conflict")
