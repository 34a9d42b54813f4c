// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package prompt

import (
	"sync/atomic"

	"github.com/toeirei/keyshare/internal/model"
)

// FinishedMsg is emitted once the prompt has produced its decision. The host
// closes the prompt when it sees it.
type FinishedMsg struct {
	ID       int
	Decision model.Decision
}

// ErrorMsg carries a failure the prompt does not handle itself: a failed
// device download, a broken verification flow or a failed trust lookup.
// OnFinished is not called; the host decides what to do.
type ErrorMsg struct {
	ID  int
	Err error
}

func (e ErrorMsg) Error() string { return e.Err.Error() }

// Internal messages carry the prompt instance id so completions addressed to
// a closed prompt can never reach its successor.
type (
	deviceLoadedMsg struct {
		id     int
		device *model.Device
	}
	userResolvedMsg struct {
		id   int
		user *model.User
	}
	verificationDoneMsg struct {
		id  int
		err error
	}
	trustCheckedMsg struct {
		id       int
		verified bool
	}
)

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}
