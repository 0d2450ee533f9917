// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fixes

import "regexp"

// dangerousPattern is a solution-text rule that quarantines on submit.
type dangerousPattern struct {
	name string
	re   *regexp.Regexp
}

var dangerousPatterns = []dangerousPattern{
	{"recursive_root_delete", regexp.MustCompile(`(?i)\brm\s+(-[a-z-]*\s+)*-[a-z]*[rf][a-z]*\s+(-[a-z-]*\s+)*["']?(/|/\*|~|~/|\$home|\$\{home\}|\*)["']?(\s|$|;|&)`)},
	{"no_preserve_root", regexp.MustCompile(`(?i)--no-preserve-root`)},
	{"disk_wipe_dd", regexp.MustCompile(`(?i)\bdd\s+.*\bof=/dev/(sd|hd|nvme|disk|xvd|vd|mmcblk)`)},
	{"mkfs", regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\s+/dev/`)},
	{"raw_device_write", regexp.MustCompile(`(?i)>\s*/dev/(sd|hd|nvme|disk|xvd|vd)[a-z0-9]*`)},
	{"shred_device", regexp.MustCompile(`(?i)\b(shred|wipefs)\b.*\s/dev/`)},
	{"fork_bomb", regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`)},
	{"chmod_root", regexp.MustCompile(`(?i)\bchmod\s+(-[a-z]*\s+)*-?[0-7]*777\s+/(\s|$)`)},
	{"chown_root_recursive", regexp.MustCompile(`(?i)\bchown\s+-[a-z]*r[a-z]*\s+\S+\s+/(\s|$)`)},
	{"curl_pipe_shell", regexp.MustCompile(`(?i)\b(curl|wget)\b[^|;&]*\|\s*(sudo\s+)?(ba|z|k)?sh\b`)},
	{"windows_format", regexp.MustCompile(`(?i)\bformat\s+[a-z]:`)},
	{"windows_recursive_delete", regexp.MustCompile(`(?i)\b(del|rd|rmdir)\s+(/[a-z]\s+)*[a-z]:\\\*?`)},
	{"python_rmtree_root", regexp.MustCompile(`(?i)shutil\.rmtree\(\s*['"](/|~|c:\\\\?)['"]`)},
	{"drop_database", regexp.MustCompile(`(?i)\bdrop\s+(database|schema)\b`)},
	{"history_wipe", regexp.MustCompile(`(?i)\bgit\s+push\s+.*--force\b.*\b(main|master)\b`)},
}

// MatchDangerous returns the name of the first dangerous pattern found in
// solution.
func MatchDangerous(solution string) (string, bool) {
	for _, p := range dangerousPatterns {
		if p.re.MatchString(solution) {
			return p.name, true
		}
	}
	return "", false
}

// DangerousPatternNames lists the rule names in evaluation order.
func DangerousPatternNames() []string {
	names := make([]string, len(dangerousPatterns))
	for i, p := range dangerousPatterns {
		names[i] = p.name
	}
	return names
}
