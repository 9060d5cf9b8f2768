// Package config loads the campaign configuration file.
//
// # Overview
//
// Configuration is written in CUE. The file is compiled and unified with a
// built-in, closed #Config definition, so type errors and unknown fields are
// reported with their file position. The result is decoded on top of
// Default() and then checked with validator struct tags.
//
// A missing file is not an error: Load returns the defaults.
//
// # Example File
//
//	account: "jane"
//
//	progress: {
//	    backend: "sqlite"
//	    path:    "progress.db"
//	}
//
//	cli: timeout: "2m"
//
//	scripts: [{
//	    name:    "Follow a user"
//	    phase:   1
//	    targets: ["follower"]
//	    file:    "scripts/follow.star"
//	}]
//
// # Error Handling
//
// Every problem found in a file is collected into a *LoadError:
//
//	badges.cue:4:14: cli.timeout: invalid value "soon"
package config
