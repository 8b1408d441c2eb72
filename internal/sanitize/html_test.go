package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextRemovesMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"script tag", `Hello <script>alert('xss')</script> World`, `Hello  World`},
		{"inline handler", `<div onclick="alert('xss')">Click me</div>`, `Click me`},
		{"iframe", `Meetup <iframe src="evil.com"></iframe>`, `Meetup`},
		{"formatting", `<b>Bold</b> <i>Italic</i>`, `Bold Italic`},
		{"image with onerror", `<img src=x onerror="alert('xss')">`, ``},
		{"svg payload", `<svg onload="alert(1)"><script>alert(1)</script></svg>`, ``},
		{"plain text", `Calgary Tech Week`, `Calgary Tech Week`},
		{"surrounding space", "  YYC Devs \n", `YYC Devs`},
		{"empty", ``, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestHTMLKeepsSafeFormatting(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		keep    []string
		dropped []string
	}{
		{"paragraphs and emphasis", `<p>Join <strong>us</strong> <em>tonight</em></p>`, []string{"<p>", "<strong>", "<em>"}, nil},
		{"lists", `<ul><li>Talks</li><li>Pizza</li></ul>`, []string{"<ul>", "<li>Talks</li>"}, nil},
		{"script removed", `<p>Hi</p><script>alert(1)</script>`, []string{"<p>Hi</p>"}, []string{"<script", "alert"}},
		{"handler removed", `<p onclick="steal()">Hi</p>`, []string{"Hi"}, []string{"onclick"}},
		{"javascript link removed", `<a href="javascript:alert(1)">x</a>`, []string{"x"}, []string{"javascript:"}},
		{"style removed", `<p style="color:red">Hi</p>`, []string{"Hi"}, []string{"style="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HTML(tt.input)
			for _, want := range tt.keep {
				require.Contains(t, got, want)
			}
			for _, bad := range tt.dropped {
				require.False(t, strings.Contains(got, bad), "%q still contains %q", got, bad)
			}
		})
	}
}

func TestInPlace(t *testing.T) {
	name := "<b>Tech</b> Night"
	location := " Central Library "
	InPlace(&name, &location, nil)
	require.Equal(t, "Tech Night", name)
	require.Equal(t, "Central Library", location)
}

func BenchmarkText(b *testing.B) {
	input := strings.Repeat(`<p>Calgary <b>events</b> <script>x()</script></p>`, 20)
	for i := 0; i < b.N; i++ {
		_ = Text(input)
	}
}
