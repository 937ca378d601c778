// Package player defines the playback engine boundary and an implementation backed by an external process.
//
// An [Engine] loads a URI and returns a [Handle]. The handle owns exactly one loaded resource;
// Unload releases it and is safe to call more than once. Done fires at most once: nil on natural
// end-of-stream, [ErrStopped] after an explicit Stop or Unload, any other error on engine failure.
//
// [ProcessEngine] launches a command such as `mpv --no-video --really-quiet <uri>` on Play.
// Pause and resume use SIGSTOP/SIGCONT, which are unavailable on Windows.
package player
