// Package sample ships the song loaded by the "load sample" action.
package sample

import (
	_ "embed"
	"strings"
)

//go:embed first_song.music
var firstSong string

// Song returns the bundled sample song without a trailing newline.
func Song() string {
	return strings.TrimRight(firstSong, "\n")
}
