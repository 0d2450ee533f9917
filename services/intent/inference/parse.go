// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianRouter/services/intent/router"
)

// maxHints caps the hint tokens accepted from one answer.
const maxHints = 8

// wireAnswer is the JSON object the model is instructed to return.
type wireAnswer struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
	Hints      []string `json:"hints"`
}

// ParseAnswer converts raw model output to a tagged result.
//
// Code fences and text around the first JSON object are tolerated. A
// missing intent or confidence is malformed. Range checks are left to the
// router.
func ParseAnswer(raw string) router.InferenceResult {
	body := strings.TrimSpace(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return router.InferenceMalformed{Raw: raw, Err: fmt.Errorf("%w: no JSON object", router.ErrMalformedResponse)}
	}

	var w wireAnswer
	if err := json.Unmarshal([]byte(body[start:end+1]), &w); err != nil {
		return router.InferenceMalformed{Raw: raw, Err: fmt.Errorf("%w: %v", router.ErrMalformedResponse, err)}
	}
	if strings.TrimSpace(w.Intent) == "" {
		return router.InferenceMalformed{Raw: raw, Err: fmt.Errorf("%w: missing intent", router.ErrMalformedResponse)}
	}
	if w.Confidence == nil {
		return router.InferenceMalformed{Raw: raw, Err: fmt.Errorf("%w: missing confidence", router.ErrMalformedResponse)}
	}

	var hints []string
	for _, h := range w.Hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		hints = append(hints, h)
		if len(hints) == maxHints {
			break
		}
	}
	return router.InferenceOK{
		Intent:     strings.TrimSpace(w.Intent),
		Confidence: *w.Confidence,
		Hints:      hints,
	}
}
