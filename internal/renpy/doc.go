// Package renpy uploads a Ren'Py game directory as dev.dreary.renpy.project and
// dev.dreary.renpy.asset records, and downloads a project back into a
// runnable game tree.
//
// Script files (.rpy) are stored inline as text. Audio, images, and fonts are
// uploaded as blobs; anything else (compiled .rpyc files, caches, saves) is
// skipped.
package renpy
