// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hashdomain

import "errors"

var errShortRead = errors.New("hashdomain: short read decoding node")
