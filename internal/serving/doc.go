// Package serving implements the admission, batching, and execution-scheduling
// engine that sits between the transport layer and the native inference
// runtime. It is structured into small files by concern:
//
//   - engine.go: Engine facade, constructor, Infer entry point.
//   - config.go: Config and package defaults.
//   - types.go: internal types (ModelHandle, pendingRequest, batch).
//   - errors.go: error types and helpers (IsBackpressure, IsUnknownModel, ...).
//   - registry.go: the owned table of ModelHandles.
//   - sessions.go: per-model fixed-size pools of execution sessions.
//   - admission.go: queue-depth and memory-budget admission control.
//   - assembler.go: per-model request queues and the size/time batch trigger.
//   - scheduler.go: batch dispatch, output splitting, result delivery.
//   - backend.go: the execution capability interface plus backend selection.
//   - events.go: lifecycle event publishing.
//   - status.go: Status/ListModels reporting helpers.
//
// Backends:
//
//   - "onnx": ONNX Runtime via github.com/yalue/onnxruntime_go. One native
//     session per pool slot. Requires the shared library to be initialized by
//     the caller (see cmd/enferd).
//   - "sim": deterministic in-process backend for tests and model-free runs.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New, Register, Unregister, Infer, Status, Close).
// Internal types are subject to change.
package serving
