// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Catalog holds localized reply texts keyed by language and message key.
// It ships with built-in defaults; a YAML file may override any subset and
// is hot-reloaded on change.
type Catalog struct {
	mu       sync.RWMutex
	replies  map[string]map[string]string // language -> key -> text
	fallback string                       // default language
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
}

// Message keys used by the stage handlers and the engine.
const (
	MsgGreeting       = "greeting"
	MsgAskName        = "ask_name"
	MsgAskNeed        = "ask_need"
	MsgAskProblem     = "ask_problem"
	MsgAskDevice      = "ask_device"
	MsgProposeTests   = "propose_tests"
	MsgAdvancedTests  = "advanced_tests"
	MsgEscalate       = "escalate"
	MsgAskEmail       = "ask_email"
	MsgEmailInvalid   = "email_invalid"
	MsgAskPhone       = "ask_phone"
	MsgTicketSent     = "ticket_sent"
	MsgSolved         = "solved"
	MsgRestarted      = "restarted"
	MsgRejectKind     = "reject_kind"
	MsgRejectToken    = "reject_token"
	MsgDegradedReply  = "degraded_reply"
	MsgDuplicateAck   = "duplicate_ack"
)

var builtinReplies = map[string]map[string]string{
	"es-AR": {
		MsgGreeting:      "¡Hola! Soy el asistente de soporte. ¿En qué idioma querés continuar?",
		MsgAskName:       "¡Perfecto! ¿Cómo te llamás?",
		MsgAskNeed:       "Gracias, %s. ¿Qué necesitás hoy?",
		MsgAskProblem:    "Contame qué está pasando con tu equipo.",
		MsgAskDevice:     "Entiendo. ¿Con qué equipo estás teniendo el problema?",
		MsgProposeTests:  "Probemos algo: reiniciá el equipo y verificá los cables. ¿Cómo te fue?",
		MsgAdvancedTests: "Vamos con pruebas más avanzadas. Seguí los pasos y contame.",
		MsgEscalate:      "No pudimos resolverlo con las pruebas básicas. ¿Querés que genere un ticket de soporte?",
		MsgAskEmail:      "Para el ticket necesito tu email.",
		MsgEmailInvalid:  "Ese email no parece válido. ¿Podés revisarlo?",
		MsgAskPhone:      "¿Y un teléfono de contacto?",
		MsgTicketSent:    "¡Listo! Generé el ticket y te va a llegar el enlace de WhatsApp.",
		MsgSolved:        "¡Excelente! Me alegro de que se haya resuelto.",
		MsgRestarted:     "Empecemos de nuevo. ¿En qué idioma querés continuar?",
		MsgRejectKind:    "No entendí esa respuesta. Usá las opciones disponibles, por favor.",
		MsgRejectToken:   "Esa opción no está disponible en este paso.",
		MsgDegradedReply: "Tuve un inconveniente procesando tu mensaje. Intentemos de nuevo.",
		MsgDuplicateAck:  "Ya recibí ese mensaje, lo estoy procesando.",
	},
	"es-ES": {
		MsgGreeting:      "¡Hola! Soy el asistente de soporte. ¿En qué idioma quieres continuar?",
		MsgAskName:       "¡Perfecto! ¿Cómo te llamas?",
		MsgAskNeed:       "Gracias, %s. ¿Qué necesitas hoy?",
		MsgAskProblem:    "Cuéntame qué está pasando con tu equipo.",
		MsgAskDevice:     "Entiendo. ¿Con qué equipo estás teniendo el problema?",
		MsgProposeTests:  "Probemos algo: reinicia el equipo y verifica los cables. ¿Qué tal ha ido?",
		MsgAdvancedTests: "Vamos con pruebas más avanzadas. Sigue los pasos y cuéntame.",
		MsgEscalate:      "No hemos podido resolverlo con las pruebas básicas. ¿Quieres que genere un ticket de soporte?",
		MsgAskEmail:      "Para el ticket necesito tu email.",
		MsgEmailInvalid:  "Ese email no parece válido. ¿Puedes revisarlo?",
		MsgAskPhone:      "¿Y un teléfono de contacto?",
		MsgTicketSent:    "¡Hecho! He generado el ticket y te llegará el enlace de WhatsApp.",
		MsgSolved:        "¡Excelente! Me alegro de que se haya resuelto.",
		MsgRestarted:     "Empecemos de nuevo. ¿En qué idioma quieres continuar?",
		MsgRejectKind:    "No he entendido esa respuesta. Usa las opciones disponibles, por favor.",
		MsgRejectToken:   "Esa opción no está disponible en este paso.",
		MsgDegradedReply: "He tenido un problema procesando tu mensaje. Intentémoslo de nuevo.",
		MsgDuplicateAck:  "Ya he recibido ese mensaje, lo estoy procesando.",
	},
	"en": {
		MsgGreeting:      "Hi! I'm the support assistant. Which language would you like to continue in?",
		MsgAskName:       "Great! What's your name?",
		MsgAskNeed:       "Thanks, %s. What do you need today?",
		MsgAskProblem:    "Tell me what's going on with your device.",
		MsgAskDevice:     "Got it. Which device is giving you trouble?",
		MsgProposeTests:  "Let's try something: restart the device and check the cables. How did it go?",
		MsgAdvancedTests: "Let's run some advanced tests. Follow the steps and tell me.",
		MsgEscalate:      "Basic tests didn't solve it. Want me to create a support ticket?",
		MsgAskEmail:      "I need your email for the ticket.",
		MsgEmailInvalid:  "That email doesn't look valid. Can you double-check it?",
		MsgAskPhone:      "And a contact phone number?",
		MsgTicketSent:    "Done! Ticket created — the WhatsApp link is on its way.",
		MsgSolved:        "Excellent! Glad it's solved.",
		MsgRestarted:     "Let's start over. Which language would you like to continue in?",
		MsgRejectKind:    "I didn't understand that. Please use the available options.",
		MsgRejectToken:   "That option isn't available at this step.",
		MsgDegradedReply: "I hit a snag processing your message. Let's try again.",
		MsgDuplicateAck:  "I already received that message and I'm on it.",
	},
}

// NewCatalog builds a catalog with built-in replies, applying overrides from
// path when non-empty.
func NewCatalog(path, defaultLanguage string, logger zerolog.Logger) (*Catalog, error) {
	c := &Catalog{
		fallback: defaultLanguage,
		logger:   logger,
	}
	c.replies = cloneReplies(builtinReplies)
	if _, ok := c.replies[defaultLanguage]; !ok {
		return nil, fmt.Errorf("catalog: unknown default language %q", defaultLanguage)
	}
	if path != "" {
		if err := c.loadOverrides(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Reply returns the text for (language, key), falling back to the default
// language and finally to the key itself so a missing entry is visible but
// never fatal.
func (c *Catalog) Reply(language, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if msgs, ok := c.replies[language]; ok {
		if text, ok := msgs[key]; ok {
			return text
		}
	}
	if msgs, ok := c.replies[c.fallback]; ok {
		if text, ok := msgs[key]; ok {
			return text
		}
	}
	return key
}

// Replyf formats a reply with arguments.
func (c *Catalog) Replyf(language, key string, args ...any) string {
	return fmt.Sprintf(c.Reply(language, key), args...)
}

// Languages lists the languages the catalog can answer in.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.replies))
	for lang := range c.replies {
		out = append(out, lang)
	}
	return out
}

func (c *Catalog) loadOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var overrides map[string]map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for lang, msgs := range overrides {
		if _, ok := c.replies[lang]; !ok {
			c.replies[lang] = map[string]string{}
		}
		for key, text := range msgs {
			c.replies[lang][key] = text
		}
	}
	c.logger.Info().Str("path", path).Int("languages", len(overrides)).Msg("reply catalog overrides loaded")
	return nil
}

// Watch hot-reloads overrides whenever the file changes. Reload failures
// keep the previous catalog and are logged, never fatal.
func (c *Catalog) Watch(path string) error {
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("catalog: watch %s: %w", path, err)
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.loadOverrides(path); err != nil {
					c.logger.Warn().Err(err).Msg("reply catalog reload failed, keeping previous")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn().Err(err).Msg("reply catalog watcher error")
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (c *Catalog) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func cloneReplies(src map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(src))
	for lang, msgs := range src {
		m := make(map[string]string, len(msgs))
		for k, v := range msgs {
			m[k] = v
		}
		out[lang] = m
	}
	return out
}
