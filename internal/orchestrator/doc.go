// Package orchestrator runs one legal question through the answer pipeline.
//
// # Overview
//
// A Pipeline takes a normalized Request and moves it through explicit
// stages, each timed and reported in the Response:
//
//	receive → translate_in → retrieve → synthesize → translate_out → speak → log → respond
//
// Stages run sequentially within a request. Requests run concurrently and
// share the Pipeline, which holds no per-request state.
//
// # Failure Handling
//
// Two kinds of failure degrade instead of failing the request:
//   - Translation failures fall back to the untranslated text and add a
//     warning to the Response.
//   - A model reply that does not match the answer schema produces a
//     degraded answer with low confidence.
//
// Every other failure stops the pipeline and returns an
// *errkind.StageError naming the stage and the error kind. Work done by
// earlier stages is discarded.
//
// # Query Log
//
// The log stage enqueues an entry and never waits on the sink. A full
// queue drops the entry.
//
// # Voice Requests
//
// Voice input arrives already transcribed. FromVoice normalizes it into a
// Request on the voice channel; the reasoning of a voice answer is
// prefixed with the transcription so the user can check what was heard.
package orchestrator
