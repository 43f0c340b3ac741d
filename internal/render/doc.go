// Package render animates scene visuals onto a Surface. Each visual is
// driven by a small state machine (hidden, entering, visible) and at most
// one animation Handle, which can be cancelled synchronously.
package render
