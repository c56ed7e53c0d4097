// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"
	"strings"
)

// Summary renders a human-readable report of every account's balance
// and note count, in the terse tabular style the original's print
// routines favor (SUPPLEMENTED FEATURES: a CLI/debug print helper).
func (l *Ledger) Summary() (string, error) {
	accounts, err := l.GetAccounts()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, a := range accounts {
		bal, err := l.GetBalance(a.ID)
		if err != nil {
			return "", err
		}
		var noteCount int
		if err := l.db.QueryRow(
			`SELECT COUNT(*) FROM received_notes WHERE account = ? AND spent_height IS NULL`,
			a.ID,
		).Scan(&noteCount); err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "#%-3d %-16s %14s  %d note(s)\n", a.ID, a.Name, bal, noteCount)
	}
	height, err := l.GetLastSyncHeight()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "synced to height %d\n", height)
	return sb.String(), nil
}
