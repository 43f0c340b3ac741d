// Package playback plays a timeline as one synchronized audio/visual
// sequence. The Orchestrator plays one scene group; the Controller walks
// the whole timeline from a single coordinator goroutine; Preview
// auditions one scene.
package playback
