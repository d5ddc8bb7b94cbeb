package infrastructure

import (
	"testing"

	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/stretchr/testify/assert"
)

func TestGetExtensionFromMIME(t *testing.T) {
	tests := map[string]struct {
		mime    string
		want    string
		wantErr error
	}{
		"jpeg":    {mime: "image/jpeg", want: "jpg"},
		"jpg":     {mime: "image/jpg", want: "jpg"},
		"png":     {mime: "image/png", want: "png"},
		"webp":    {mime: "image/webp", want: "webp"},
		"gif":     {mime: "image/gif", want: "gif"},
		"unknown": {mime: "application/pdf", want: "bin", wantErr: e.ErrUnsupportedMediaType},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := GetExtensionFromMIME(tt.mime)
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
