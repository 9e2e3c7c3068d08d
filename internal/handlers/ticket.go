// SPDX-License-Identifier: MIT

package handlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/stitech/convogate/internal/session"
)

// Ticket is the support-ticket snapshot assembled from the session's
// business data once escalation completes.
type Ticket struct {
	ID      string
	Name    string
	Need    string
	Problem string
	Device  string
	Email   string
	Phone   string
}

func newTicket(sess session.Session) Ticket {
	return Ticket{
		ID:      "TCK-" + strings.ToUpper(uuid.NewString()[:8]),
		Name:    sess.Data[DataName],
		Need:    sess.Data[DataNeed],
		Problem: sess.Data[DataProblem],
		Device:  sess.Data[DataDevice],
		Email:   sess.Data[DataEmail],
		Phone:   sess.Data[DataPhone],
	}
}

// Summary renders the ticket as the prefilled message body for the support
// channel.
func (t Ticket) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s\n", t.ID)
	for _, row := range []struct{ label, value string }{
		{"Nombre", t.Name},
		{"Equipo", t.Device},
		{"Problema", t.Problem},
		{"Email", t.Email},
		{"Tel", t.Phone},
	} {
		if row.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", row.label, row.value)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// whatsAppLink builds a wa.me deep link with the ticket summary prefilled.
func whatsAppLink(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(text)
}
