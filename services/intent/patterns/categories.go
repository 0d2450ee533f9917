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

import (
	"regexp"
	"strings"
)

// =============================================================================
// Signal Categories
// =============================================================================

// Category is one independent kind of lexical evidence.
type Category int

const (
	CatCreationVerb Category = iota + 1
	CatFileVerb
	CatModelVerb
	CatRunVerb
	CatFixVerb
	CatFileNoun
	CatModelNoun
	CatScriptNoun
	CatLanguage
	CatErrorNoun
	CatQuestionWord
	CatQuestionFrame
	CatQuestionMark
	CatConnective
	CatTarget
)

var categoryNames = map[Category]string{
	CatCreationVerb:  "creation_verb",
	CatFileVerb:      "file_verb",
	CatModelVerb:     "model_verb",
	CatRunVerb:       "run_verb",
	CatFixVerb:       "fix_verb",
	CatFileNoun:      "file_noun",
	CatModelNoun:     "model_noun",
	CatScriptNoun:    "script_noun",
	CatLanguage:      "language",
	CatErrorNoun:     "error_noun",
	CatQuestionWord:  "question_word",
	CatQuestionFrame: "question_frame",
	CatQuestionMark:  "question_mark",
	CatConnective:    "connective",
	CatTarget:        "target",
}

// String returns the snake_case category name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// DefaultWeights is the confidence each satisfied category contributes.
var DefaultWeights = map[Category]float64{
	CatCreationVerb:  0.15,
	CatFileVerb:      0.15,
	CatModelVerb:     0.15,
	CatRunVerb:       0.15,
	CatFixVerb:       0.20,
	CatFileNoun:      0.15,
	CatModelNoun:     0.15,
	CatScriptNoun:    0.15,
	CatLanguage:      0.10,
	CatErrorNoun:     0.15,
	CatQuestionWord:  0.15,
	CatQuestionFrame: 0.20,
	CatQuestionMark:  0.10,
	CatConnective:    0.10,
	CatTarget:        0.15,
}

// =============================================================================
// Vocabularies
// =============================================================================

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var fileNouns = wordSet(
	"file", "files", "folder", "folders", "directory", "directories", "dir",
	"document", "documents", "doc", "docs", "log", "logs", "path", "csv",
	"json", "txt", "spreadsheet", "archive", "backup", "notes",
)

var modelNouns = wordSet(
	"model", "models", "llm", "llms", "weights", "checkpoint", "checkpoints",
	"embedding", "embeddings", "gguf",
)

// modelFamilies are name prefixes of locally runnable model families.
// A token starting with one of these ("llama3.1:8b", "qwen2.5") is a model.
var modelFamilies = []string{
	"codellama", "tinyllama", "llama", "mistral", "mixtral", "qwen", "phi",
	"gemma", "deepseek", "starcoder", "granite", "vicuna", "falcon",
	"nomic", "command-r", "llava", "orca", "zephyr", "openchat", "yi-",
}

var scriptNouns = wordSet(
	"script", "scripts", "program", "programs", "code", "function",
	"functions", "snippet", "class", "cli", "tool", "app", "application",
	"bot", "scraper", "utility", "automation", "job", "notebook",
)

var languages = wordSet(
	"python", "py", "bash", "shell", "sh", "zsh", "javascript", "js",
	"typescript", "ts", "golang", "rust", "ruby", "java", "powershell",
	"perl", "lua", "node", "nodejs", "kotlin", "swift", "php",
)

var errorNouns = wordSet(
	"error", "errors", "exception", "exceptions", "traceback", "stacktrace",
	"crash", "crashed", "crashes", "crashing", "failing", "fails", "failed",
	"failure", "broken", "bug", "bugs", "buggy", "segfault", "panic",
	"panics", "panicked", "throws", "threw", "raises", "raised",
)

var questionWords = wordSet(
	"what", "whats", "how", "hows", "why", "when", "where", "who", "which",
	"explain", "describe", "define", "meaning", "difference", "tell",
)

var connectives = wordSet(
	"named", "called", "titled", "that", "so", "into", "from",
	"using", "with", "to",
)

// namingConnectives introduce an explicit target name.
var namingConnectives = wordSet("named", "called", "titled")

var stopwords = wordSet(
	"a", "an", "the", "my", "your", "our", "this", "these", "those", "it",
	"its", "me", "i", "im", "of", "in", "on", "for", "and", "or", "some",
	"all", "any", "is", "are", "be", "do", "does", "can", "could", "would",
	"should", "will", "want", "need", "like", "just", "now", "up", "out",
	"about", "there", "here", "one", "new", "please", "again", "also",
	"then", "via", "by", "at", "as", "if", "not", "no", "yes", "ok",
)

var questionFrames = []*regexp.Regexp{
	regexp.MustCompile(`^(what|how|why|when|where|who|which)('s|s)?\s+(is|are|was|were|do|does|did|can|could|should|would|will|to|the|a|an|i)\b`),
	regexp.MustCompile(`^(explain|describe|define)\b`),
	regexp.MustCompile(`^tell me (about|how|why|what)\b`),
	regexp.MustCompile(`\b(difference between|meaning of|what does .+ mean)\b`),
	regexp.MustCompile(`^(is|are|does|do|can|should|could|would)\s+(it|there|a|an|the|i|you|my|python|\w+ing)\b`),
}

var (
	// fileLikeRe matches names with an extension or a path separator.
	fileLikeRe = regexp.MustCompile(`^(~|\.{1,2})?[\w.\-/\\~]*[/\\][\w.\-/\\]*$|^[\w.\-]*[A-Za-z_\-][\w\-]*\.[A-Za-z][A-Za-z0-9]{0,7}$`)
	numericRe  = regexp.MustCompile(`^\d+(\.\d+)*$`)
)

// isModelName reports whether tok names a model family.
func isModelName(tok string) bool {
	for _, family := range modelFamilies {
		if strings.HasPrefix(tok, family) {
			return true
		}
	}
	return false
}

// isFileLike reports whether tok looks like a file name or path.
func isFileLike(tok string) bool {
	if numericRe.MatchString(tok) || isModelName(tok) {
		return false
	}
	return fileLikeRe.MatchString(tok)
}

func isErrorNoun(tok string) bool {
	if _, ok := errorNouns[tok]; ok {
		return true
	}
	// Exception class names: keyerror, modulenotfounderror, nullpointerexception.
	return len(tok) > 5 && (strings.HasSuffix(tok, "error") || strings.HasSuffix(tok, "exception"))
}
