package admission

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateContent_Accepts(t *testing.T) {
	h, err := cryptox.NewHeader()
	require.NoError(t, err)
	body := append(h.Bytes(), []byte("frames follow")...)

	r, err := GateContent(bytes.NewReader(body))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, got, "the gated prefix is replayed")
}

func TestGateContent_Rejects(t *testing.T) {
	cases := map[string]string{
		"plain text": strings.Repeat("hello world ", 10),
		"short":      "XFR",
		"empty":      "",
		"gzip":       "\x1f\x8b\x08\x00" + strings.Repeat("\x00", 60),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := GateContent(strings.NewReader(body))
			assert.ErrorIs(t, err, common.ErrRejected)
		})
	}
}

func TestCheckContentLength(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader("0123456789"))
	assert.NoError(t, CheckContentLength(r, 10))

	err := CheckContentLength(r, 9)
	var sle *common.SizeLimitError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, int64(9), sle.Limit)

	r.ContentLength = -1
	assert.NoError(t, CheckContentLength(r, 9), "unknown length is checked while streaming")
}
