// Package engines contains speech synthesis engines: Piper (offline), gTTS
// (online, through gtts-cli and ffmpeg) and a deterministic mock.
package engines
