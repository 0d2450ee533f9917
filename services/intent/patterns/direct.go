// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import "sort"

// directCommands maps exact normalized inputs to canonical commands.
// Entries must be unambiguous on their own; anything that needs a target
// belongs in the rule table instead.
var directCommands = map[string]string{
	"help":          "help",
	"h":             "help",
	"commands":      "help",
	"show commands": "help",
	"exit":          "exit",
	"quit":          "exit",
	"q":             "exit",
	"bye":           "exit",
	"goodbye":       "exit",
	"clear":         "clear",
	"cls":           "clear",
	"clear screen":  "clear",
	"status":        "status",
	"show status":   "status",
	"version":       "version",
	"show version":  "version",
	"history":       "history",
	"show history":  "history",
	"undo":          "undo",
	"redo":          "redo",
	"reset":         "reset",
	"pwd":           "pwd",
	"ls":            "list_files",
	"list files":    "list_files",
	"show files":    "list_files",
	"models":        "list_models",
	"list models":   "list_models",
	"show models":   "list_models",
	"ls models":     "list_models",
	"settings":      "settings",
	"config":        "settings",
	"show settings": "settings",
	"safe mode":     "safe_mode",
	"safemode":      "safe_mode",
	"cancel":        "cancel",
	"stop":          "cancel",
}

// DirectCommand looks up an exact, already normalized input.
func DirectCommand(normalized string) (string, bool) {
	cmd, ok := directCommands[normalized]
	return cmd, ok
}

// DirectCommands returns the distinct canonical commands, sorted.
func DirectCommands() []string {
	seen := make(map[string]struct{})
	for _, cmd := range directCommands {
		seen[cmd] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cmd := range seen {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}
