// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

import "code.hybscloud.com/iox"

// ErrWouldBlock indicates the operation cannot produce a value right now.
//
// For PopBottom: the deque is empty, or a thief won the race for the
// last value.
// For PopTop: the deque is empty, or another pop won the CAS on top.
//
// ErrWouldBlock is a control flow signal, not a failure. A thief that
// receives it moves on to another deque (or re-polls when the empty
// hint is false); the owner treats it as "no local work".
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	for {
//	    v, hint, err := s.PopTop()
//	    if err == nil {
//	        run(v)
//	    }
//	    if hint {
//	        break // deque drained, steal elsewhere
//	    }
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, or ErrMore.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
