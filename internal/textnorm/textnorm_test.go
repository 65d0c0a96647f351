package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"小文字化とアクセント除去", "Reforma Tributária", "reforma tributaria"},
		{"セディーユとチルダ", "Tributação e Arrecadação", "tributacao e arrecadacao"},
		{"記号は空白に畳み込む", "IBS/CBS: novo IVA!!", "ibs cbs novo iva"},
		{"数字は保持", "PEC-45 aprovada", "pec 45 aprovada"},
		{"前後の空白は除去", "  \t Fisco \n", "fisco"},
		{"連続する空白", "Receita    Federal", "receita federal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeLetters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"数字も空白に畳み込む", "PEC-45 aprovada", "pec aprovada"},
		{"数字だけの語は消える", "Lei 214/2025", "lei"},
		{"アクセント除去", "Reforma Tributária", "reforma tributaria"},
		{"数字のみ", "2026", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLetters(tt.input); got != tt.want {
				t.Errorf("NormalizeLetters(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Código Tributário Nacional", "ÁÉÍÓÚ ç ñ", "a--b__c"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize is not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("A reforma tributária (IBS)")
	want := []string{"a", "reforma", "tributaria", "ibs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}

	if got := Tokens("!!!"); len(got) != 0 {
		t.Errorf("Tokens(%q) = %v, want empty", "!!!", got)
	}
}

func TestJoin_SkipsBlankParts(t *testing.T) {
	if got := Join("título", "", "  ", "conteúdo"); got != "título conteúdo" {
		t.Errorf("Join = %q, want %q", got, "título conteúdo")
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"タグなし", "  texto simples ", "texto simples"},
		{"段落の境界に空白を挟む", "<p>Reforma</p><p>Tributária</p>", "Reforma Tributária"},
		{"インライン要素は連結", "<p>I<strong>BS</strong> aprovado</p>", "IBS aprovado"},
		{"scriptは除去", "<p>texto</p><script>alert(1)</script>", "texto"},
		{"エンティティをデコード", "IBS &amp; CBS", "IBS & CBS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
