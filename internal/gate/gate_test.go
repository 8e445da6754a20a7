package gate

import (
	"testing"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/conversation"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("loading embedded rules: %v", err)
	}
	return New(rules)
}

func TestLoadRules_EmbeddedDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules.HardExclusions) == 0 || len(rules.DomainTerms) == 0 {
		t.Error("embedded rules should carry exclusions and domain terms")
	}
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name     string
		question string
		history  []conversation.Turn
		want     bool
	}{
		{
			name:     "domain term admits",
			question: "¿Qué documentos necesito para el arraigo social?",
			want:     true,
		},
		{
			name:     "greeting admits",
			question: "Hola",
			want:     true,
		},
		{
			name:     "country name admits",
			question: "Soy de Venezuela y quiero regularizar mi situación",
			want:     true,
		},
		{
			name:     "follow-up pattern admits without history keywords",
			question: "¿Y cuánto cuesta el trámite?",
			want:     true,
		},
		{
			name:     "unrelated question rejected",
			question: "Dame una receta de paella",
			want:     false,
		},
		{
			name:     "hard exclusion rejected",
			question: "¿Cómo solicito la green card?",
			want:     false,
		},
		{
			name:     "exclusion wins over in-domain markers",
			question: "Tengo arraigo en España pero quiero la green card de USCIS",
			want:     false,
		},
		{
			name:     "ambiguous follow-up with in-domain history admitted",
			question: "and how much does it cost?",
			history: []conversation.Turn{
				{Role: "user", Content: "¿Cómo renuevo mi TIE?"},
				{Role: "assistant", Content: "La renovación del TIE se solicita en la oficina de extranjería..."},
			},
			want: true,
		},
		{
			name:     "same follow-up without history rejected",
			question: "and how much does it cost?",
			want:     false,
		},
		{
			name:     "topic change breaks history carry-over",
			question: "cambiando de tema, recomiéndame una película",
			history: []conversation.Turn{
				{Role: "user", Content: "¿Cómo pido el arraigo?"},
			},
			want: false,
		},
	}

	g := testGate(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Admit(tt.question, "", tt.history); got != tt.want {
				t.Errorf("Admit(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestAdmit_RewrittenQuestion(t *testing.T) {
	g := testGate(t)

	// The raw question carries no markers, the rewrite does.
	if !g.Admit("que papeles piden", "requisitos de documentación para el arraigo social", nil) {
		t.Error("rewritten question with domain terms should admit")
	}
}

func TestIsVolatile(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"¿Cuál es la tasa del arraigo en 2026?", true},
		{"¿Cuánto cuesta renovar el TIE?", true},
		{"¿Qué plazo tengo para recurrir?", true},
		{"¿Qué es el arraigo social?", false},
	}

	g := testGate(t)
	for _, tt := range tests {
		if got := g.IsVolatile(tt.question); got != tt.want {
			t.Errorf("IsVolatile(%q) = %v, want %v", tt.question, got, tt.want)
		}
	}
}

func TestValidate_BadPattern(t *testing.T) {
	r := &Rules{
		DomainTerms:      []string{"arraigo"},
		FollowUpPatterns: []string{"([unclosed"},
	}
	if err := r.Validate(); err == nil {
		t.Error("expected error for invalid follow-up pattern")
	}
}
