// SPDX-License-Identifier: MIT

package intent

import (
	"context"
	"strings"
)

// problemMarkers are normalized substrings that indicate something is broken.
var problemMarkers = []string{
	"no enciende", "no funciona", "no anda", "no prende", "se apaga",
	"error", "falla", "roto", "rota", "broken", "not working", "won't turn",
	"doesn't work", "problema", "problem",
}

// taskMarkers indicate the user wants to accomplish something.
var taskMarkers = []string{
	"instalar", "configurar", "conectar", "install", "configure", "setup",
	"set up", "necesito hacer", "quiero hacer", "como hago", "how do i",
	"ayuda para", "asistencia para",
}

var gratitudeMarkers = []string{
	"gracias", "thank", "thanks", "genial", "perfecto",
}

var greetingMarkers = []string{
	"hola", "hello", "hi ", "buenas", "buen dia", "good morning",
}

// deviceVocabulary maps normalized device markers to the canonical device tag.
var deviceVocabulary = map[string]string{
	"notebook":    "notebook",
	"laptop":      "notebook",
	"compu":       "computer",
	"computadora": "computer",
	"pc":          "computer",
	"router":      "router",
	"mikrotik":    "router",
	"microtik":    "router",
	"modem":       "router",
	"stick tv":    "tv-stick",
	"stick":       "tv-stick",
	"chromecast":  "tv-stick",
	"impresora":   "printer",
	"printer":     "printer",
	"celular":     "phone",
	"telefono":    "phone",
	"phone":       "phone",
}

// Heuristic is the local fallback classifier: pure keyword matching over
// normalized text. It never fails and carries deliberately low confidence.
func Heuristic(normalizedText string, sctx SessionContext) Result {
	text := " " + normalizedText + " "

	fields := map[string]string{}
	for marker, device := range deviceVocabulary {
		if strings.Contains(normalizedText, marker) {
			fields[FieldDevice] = device
			break
		}
	}

	label := IntentUnknown
	switch {
	case containsAny(text, problemMarkers):
		label = IntentReportProblem
	case containsAny(text, taskMarkers):
		label = IntentRequestTask
	case containsAny(text, gratitudeMarkers):
		label = IntentGratitude
	case containsAny(text, greetingMarkers):
		label = IntentGreeting
	case fields[FieldDevice] != "":
		label = IntentDeviceInfo
	}

	confidence := 0.35
	if label == IntentUnknown {
		confidence = 0.1
	}

	if len(fields) == 0 {
		fields = nil
	}
	return Result{Intent: label, Confidence: confidence, Fields: fields}
}

// HeuristicAdapter exposes the fallback classifier as an Adapter for
// deployments without an external NLU service.
func HeuristicAdapter() Adapter {
	return AdapterFunc(func(_ context.Context, text string, sctx SessionContext) (Result, error) {
		return Heuristic(text, sctx), nil
	})
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
