// SPDX-License-Identifier: MIT

package normalize

import "testing"

func TestToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Hola", want: "hola"},
		{name: "whitespace", in: "  Hola  ", want: "hola"},
		{name: "zero width space", in: "\u200BHola\u200B", want: "hola"},
		{name: "bom", in: "\uFEFFBTN_YES", want: "btn_yes"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Token(tt.in); got != tt.want {
				t.Errorf("Token(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "conexión", want: "conexion"},
		{in: "compú", want: "compu"},
		{in: "año", want: "ano"},
		{in: "plain ascii", want: "plain ascii"},
	}
	for _, tt := range tests {
		if got := StripDiacritics(tt.in); got != tt.want {
			t.Errorf("StripDiacritics(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	got := Text("  Mi  Compú   no Enciende  ")
	want := "mi compu no enciende"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}
