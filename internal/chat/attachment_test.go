package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAttachmentURL(t *testing.T) {
	hosts := []string{"files.chatterbox.im", "cdn.chatterbox.im"}

	cases := []struct {
		name string
		url  string
		want string // empty means accepted
	}{
		{"approved host", "https://files.chatterbox.im/a/b.png", ""},
		{"second approved host", "https://cdn.chatterbox.im/x.pdf", ""},
		{"scheme is case-insensitive", "HTTPS://files.chatterbox.im/x.png", ""},
		{"http scheme", "http://files.chatterbox.im/x.png", msgAttachmentScheme},
		{"ftp scheme", "ftp://files.chatterbox.im/x.png", msgAttachmentScheme},
		{"unapproved host", "https://evil.example.com/x.png", msgAttachmentHost},
		{"host with port still matches", "https://files.chatterbox.im:443/x.png", ""},
		{"empty", "", msgAttachmentMalform},
		{"whitespace", "   ", msgAttachmentMalform},
		{"no scheme", "files.chatterbox.im/x.png", msgAttachmentMalform},
		{"garbage", "::::not-a-url", msgAttachmentMalform},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateAttachmentURL(tc.url, hosts)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.want)
		})
	}
}
