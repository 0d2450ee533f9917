// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

// politePrefixes are stripped from the start of an utterance, repeatedly,
// longest first.
var politePrefixes = []string{
	"i would like you to",
	"i want you to",
	"would you please",
	"could you please",
	"can you please",
	"would you mind",
	"i'd like you to",
	"could you",
	"would you",
	"can you",
	"will you",
	"please",
	"kindly",
	"hey there",
	"hello",
	"hey",
	"hi",
	"pls",
	"plz",
}

// politeSuffixes are stripped from the end of an utterance.
var politeSuffixes = []string{
	"thank you",
	"thanks",
	"please",
	"pls",
	"plz",
	"thx",
}

// staticCorrections maps frequent developer typos to their intended word.
// Keys and values are single lowercase tokens.
var staticCorrections = map[string]string{
	// creation
	"crate":   "create",
	"craete":  "create",
	"creat":   "create",
	"cretae":  "create",
	"maek":    "make",
	"mkae":    "make",
	"genrate": "generate",
	"generte": "generate",
	"wirte":   "write",
	"wrtie":   "write",
	"bulid":   "build",
	"biuld":   "build",

	// file ops
	"fiel":      "file",
	"flie":      "file",
	"fille":     "file",
	"fiels":     "files",
	"flies":     "files",
	"delte":     "delete",
	"dleete":    "delete",
	"delet":     "delete",
	"deleet":    "delete",
	"rmeove":    "remove",
	"remvoe":    "remove",
	"reomve":    "remove",
	"renmae":    "rename",
	"raname":    "rename",
	"cpoy":      "copy",
	"coyp":      "copy",
	"mvoe":      "move",
	"opne":      "open",
	"oepn":      "open",
	"raed":      "read",
	"shwo":      "show",
	"lsit":      "list",
	"lits":      "list",
	"fodler":    "folder",
	"foler":     "folder",
	"direcotry": "directory",
	"dirctory":  "directory",

	// models
	"modle":     "model",
	"moedl":     "model",
	"mdoel":     "model",
	"modles":    "models",
	"donwload":  "download",
	"downlaod":  "download",
	"dowload":   "download",
	"instal":    "install",
	"isntall":   "install",
	"intall":    "install",
	"unisntall": "uninstall",
	"pul":       "pull",
	"lama":      "llama",
	"lamma":     "llama",
	"mistrel":   "mistral",

	// scripts
	"scirpt":   "script",
	"scrpit":   "script",
	"sript":    "script",
	"scritp":   "script",
	"pyhton":   "python",
	"pytohn":   "python",
	"pyton":    "python",
	"fucntion": "function",
	"funtion":  "function",
	"progam":   "program",
	"porgram":  "program",

	// repair
	"fxi":    "fix",
	"fixx":   "fix",
	"erorr":  "error",
	"eror":   "error",
	"errror": "error",
	"erro":   "error",
	"bgu":    "bug",
	"borken": "broken",
	"crahs":  "crash",
	"debgu":  "debug",

	// misc
	"teh":    "the",
	"adn":    "and",
	"waht":   "what",
	"hwo":    "how",
	"whta":   "what",
	"hlep":   "help",
	"hepl":   "help",
	"stauts": "status",
	"statsu": "status",
	"exti":   "exit",
	"qiut":   "quit",
}

// StaticCorrections returns a copy of the built-in correction table.
func StaticCorrections() map[string]string {
	out := make(map[string]string, len(staticCorrections))
	for k, v := range staticCorrections {
		out[k] = v
	}
	return out
}
