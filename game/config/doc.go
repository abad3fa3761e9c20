// Package config defines the game types a room can host, their settings,
// and the manager that serves default settings for new rooms.
//
// Settings arrive from clients as an opaque map and are merged field by
// field onto the room's previously stored settings: a field that is
// missing, of the wrong type or out of range keeps its previous value.
// The same merge is used when loading default settings from disk, with the
// built-in defaults as the previous value.
//
// Default settings live in a directory as <gametype>.json or
// <gametype>.yaml files:
//
//	configs/
//	  cellmatch.yaml
//	  minefield.json
//
// Files are read with viper, cached in memory and invalidated when the
// directory changes on disk. A missing file means built-in defaults.
package config
