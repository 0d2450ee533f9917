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

// Verb is one entry of the action verb table.
type Verb struct {
	// Action is the canonical action name placed in the route payload.
	Action string

	// Categories are the verb categories this word satisfies.
	Categories []Category
}

var (
	asCreation    = []Category{CatCreationVerb}
	asFile        = []Category{CatFileVerb}
	asModel       = []Category{CatModelVerb}
	asFileOrModel = []Category{CatFileVerb, CatModelVerb}
	asRun         = []Category{CatRunVerb, CatModelVerb}
	asFix         = []Category{CatFixVerb}
)

// actionVerbs maps surface verbs to their canonical action.
var actionVerbs = map[string]Verb{
	// creation
	"create":     {"create", asCreation},
	"make":       {"create", asCreation},
	"generate":   {"create", asCreation},
	"write":      {"create", asCreation},
	"build":      {"create", asCreation},
	"add":        {"create", asCreation},
	"scaffold":   {"create", asCreation},
	"init":       {"create", asCreation},
	"initialize": {"create", asCreation},
	"touch":      {"create", asCreation},
	"mkdir":      {"create", asCreation},
	"draft":      {"create", asCreation},
	"implement":  {"create", asCreation},
	"setup":      {"create", asCreation},
	"compose":    {"create", asCreation},
	"produce":    {"create", asCreation},

	// file operations
	"open":       {"open", asFile},
	"read":       {"show", asFile},
	"show":       {"show", asFileOrModel},
	"display":    {"show", asFile},
	"view":       {"show", asFile},
	"cat":        {"show", asFile},
	"print":      {"show", asFile},
	"preview":    {"show", asFile},
	"list":       {"list", asFileOrModel},
	"ls":         {"list", asFileOrModel},
	"find":       {"find", asFile},
	"search":     {"find", asFileOrModel},
	"locate":     {"find", asFile},
	"grep":       {"find", asFile},
	"delete":     {"delete", asFileOrModel},
	"remove":     {"delete", asFileOrModel},
	"rm":         {"delete", asFileOrModel},
	"erase":      {"delete", asFile},
	"trash":      {"delete", asFile},
	"purge":      {"delete", asFileOrModel},
	"rename":     {"rename", asFile},
	"move":       {"move", asFile},
	"mv":         {"move", asFile},
	"relocate":   {"move", asFile},
	"copy":       {"copy", asFileOrModel},
	"cp":         {"copy", asFile},
	"duplicate":  {"copy", asFile},
	"clone":      {"copy", asFile},
	"edit":       {"edit", asFile},
	"modify":     {"edit", asFile},
	"change":     {"edit", asFile},
	"append":     {"edit", asFile},
	"truncate":   {"edit", asFile},
	"compress":   {"compress", asFile},
	"zip":        {"compress", asFile},
	"tar":        {"compress", asFile},
	"unzip":      {"extract", asFile},
	"extract":    {"extract", asFile},
	"decompress": {"extract", asFile},
	"backup":     {"backup", asFile},
	"restore":    {"restore", asFile},
	"upload":     {"upload", asFile},
	"save":       {"save", asFile},
	"export":     {"export", asFile},
	"import":     {"import", asFileOrModel},
	"clean":      {"clean", asFile},
	"cleanup":    {"clean", asFile},
	"diff":       {"compare", asFile},
	"compare":    {"compare", asFile},
	"count":      {"count", asFile},
	"sort":       {"sort", asFile},
	"merge":      {"merge", asFile},
	"split":      {"split", asFile},
	"convert":    {"convert", asFile},
	"chmod":      {"permissions", asFile},
	"summarize":  {"summarize", asFile},

	// model management
	"download":  {"download", asModel},
	"pull":      {"download", asModel},
	"fetch":     {"download", asModel},
	"get":       {"download", asModel},
	"install":   {"install", asModel},
	"uninstall": {"delete", asModel},
	"load":      {"load", asModel},
	"unload":    {"unload", asModel},
	"switch":    {"switch", asModel},
	"use":       {"switch", asModel},
	"select":    {"switch", asModel},
	"serve":     {"serve", asModel},
	"stop":      {"stop", asModel},
	"update":    {"update", asFileOrModel},
	"upgrade":   {"update", asModel},
	"quantize":  {"quantize", asModel},
	"benchmark": {"benchmark", asModel},
	"inspect":   {"show", asModel},

	// running
	"run":     {"run", asRun},
	"execute": {"run", asRun},
	"exec":    {"run", asRun},
	"launch":  {"run", asRun},
	"start":   {"run", asRun},
	"test":    {"test", []Category{CatRunVerb}},
	"lint":    {"lint", []Category{CatRunVerb}},

	// repair
	"fix":          {"fix", asFix},
	"repair":       {"fix", asFix},
	"debug":        {"fix", asFix},
	"resolve":      {"fix", asFix},
	"solve":        {"fix", asFix},
	"patch":        {"fix", asFix},
	"correct":      {"fix", asFix},
	"troubleshoot": {"fix", asFix},
	"diagnose":     {"fix", asFix},
	"unbreak":      {"fix", asFix},
}

// VerbCount reports the size of the action verb table.
func VerbCount() int {
	return len(actionVerbs)
}

// LookupVerb returns the table entry for word.
func LookupVerb(word string) (Verb, bool) {
	v, ok := actionVerbs[word]
	return v, ok
}
