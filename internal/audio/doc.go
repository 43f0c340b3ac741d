// Package audio plays synthesized clips through oto/v3. A Manager owns at
// most one clip at a time and reports how each play ended; Loop plays
// background music underneath.
package audio
