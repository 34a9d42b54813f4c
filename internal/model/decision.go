// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// Decision is the outcome of a key share prompt.
type Decision int

const (
	// DecisionDismissed means the dialog was closed without an answer.
	DecisionDismissed Decision = iota
	// DecisionShare means keys should be shared with the device.
	DecisionShare
	// DecisionDeny means keys must not be shared.
	DecisionDeny
)

// DecisionFromBool maps a yes/no answer onto Share or Deny.
func DecisionFromBool(share bool) Decision {
	if share {
		return DecisionShare
	}
	return DecisionDeny
}

// ShouldShare is true only for DecisionShare.
func (d Decision) ShouldShare() bool {
	return d == DecisionShare
}

func (d Decision) String() string {
	switch d {
	case DecisionShare:
		return "share"
	case DecisionDeny:
		return "deny"
	default:
		return "dismissed"
	}
}

// RequestStatus returns the status a resolved request is stored with.
func (d Decision) RequestStatus() RequestStatus {
	switch d {
	case DecisionShare:
		return RequestShared
	case DecisionDeny:
		return RequestIgnored
	default:
		return RequestDismissed
	}
}
