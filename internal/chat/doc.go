// Package chat implements the Mint conversational assistant: the message
// data model, the session context state machine, and the Orchestrator that
// drives a multi-stage dialogue.
//
// The package supports:
//   - Scripted choice branches revealed sequentially with typing delays
//   - Free-text classification via the approximate intent matcher, with
//     generative fallback through a pluggable completion boundary
//   - Hand-off to a live specialist queue or a modal channel surface
//   - Transcript persistence, with redaction, through a pluggable store
//
// The orchestrator owns the session's message list and context exclusively.
// Collaborating components (queue machine, modal manager) report back via
// callbacks; only the orchestrator appends to the transcript.
package chat
