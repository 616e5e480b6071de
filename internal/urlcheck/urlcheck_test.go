package urlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "https", raw: "https://open.spotify.com/track/abc"},
		{name: "http with port", raw: "http://example.com:8080/x"},
		{name: "empty", raw: "", wantErr: true},
		{name: "not a url", raw: "not-a-url", wantErr: true},
		{name: "relative", raw: "/path", wantErr: true},
		{name: "ftp", raw: "ftp://example.com", wantErr: true},
		{name: "javascript", raw: "javascript:alert(1)", wantErr: true},
		{name: "no host", raw: "https:///path", wantErr: true},
		{name: "whitespace", raw: " https://example.com", wantErr: true},
		{name: "control char", raw: "https://exa\x00mple.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://www.OnlyFans.com/creator", want: "onlyfans.com"},
		{raw: "https://open.spotify.com/track/abc", want: "open.spotify.com"},
		{raw: "http://Example.COM.:80/", want: "example.com"},
		{raw: "https://wwwexample.com", want: "wwwexample.com"},
		{raw: "not-a-url", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Domain(tt.raw))
		})
	}
}
