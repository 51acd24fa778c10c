package admission

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/cryptox"
)

// GateContent reads the stream header from body and rejects bodies that do
// not start with it. The returned reader yields the full body, header
// included.
func GateContent(body io.Reader) (io.Reader, error) {
	prefix := make([]byte, cryptox.HeaderSize)
	n, err := io.ReadFull(body, prefix)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if err := cryptox.CheckHeader(prefix[:n]); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRejected, err)
	}
	return io.MultiReader(bytes.NewReader(prefix), body), nil
}

// CheckContentLength rejects a request whose declared length already
// exceeds limit.
func CheckContentLength(r *http.Request, limit int64) error {
	if r.ContentLength > limit {
		return &common.SizeLimitError{Limit: limit}
	}
	return nil
}
