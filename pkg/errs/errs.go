// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs provides structured error classification for the sandbox
// analysis pipeline, unifying the five error kinds the pipeline can
// surface: user input, environment unavailability, sandbox failure,
// target failure, and (non-fatal) sampler failure. Timeouts are recorded
// on the trace rather than raised as errors.
package errs

import "fmt"

// Kind classifies an error for both logging and CLI exit-code purposes.
type Kind string

const (
	// KindUserInput covers missing binaries, malformed sessions, and
	// other caller mistakes.
	KindUserInput Kind = "USER_INPUT"
	// KindEnvironmentUnavailable covers a daemon, queue, or scraper that
	// could not be reached.
	KindEnvironmentUnavailable Kind = "ENVIRONMENT_UNAVAILABLE"
	// KindSandboxFailure covers image build or container run failures.
	KindSandboxFailure Kind = "SANDBOX_FAILURE"
	// KindTargetFailure covers a non-zero exit from the target binary.
	KindTargetFailure Kind = "TARGET_FAILURE"
	// KindSamplerFailure covers a single-tick sampler error; callers
	// should log and continue rather than abort the session.
	KindSamplerFailure Kind = "SAMPLER_FAILURE"
)

// Error is a structured error carrying a Kind, stage, session id, and an
// optional cause, for the CLI's "stage + kind" failure reporting (spec §7).
type Error struct {
	Kind    Kind
	Stage   string
	Session string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (stage=%s session=%s): %v", e.Kind, e.Message, e.Stage, e.Session, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (stage=%s session=%s)", e.Kind, e.Message, e.Stage, e.Session)
}

// Unwrap supports errors.Is/errors.As over the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with no cause.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Wrap creates an Error wrapping cause with additional stage/kind context.
func Wrap(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// WithSession returns a copy of e annotated with a session id.
func (e *Error) WithSession(sessionID string) *Error {
	cp := *e
	cp.Session = sessionID
	return &cp
}

// ExitCode maps an error to the CLI's three-valued exit-code contract
// (spec §6): 0 success, 1 user error, 2 runtime failure. A nil error is 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *Error
	if ok := asError(err, &se); ok {
		if se.Kind == KindUserInput {
			return 1
		}
		return 2
	}
	return 2
}

// asError avoids importing the "errors" package's As with generics friction
// by special-casing the one type we classify on.
func asError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
