// Package multipart adapts a multipart/form-data request body into a plain
// byte stream, exposing the first part's declared framing (content type,
// and if present, declared size) the way the transfer engine expects from
// any other source. It is a pre-stage the transfer engine reaches for only
// when the sender's Content-Type says so; the raw multipart envelope never
// reaches any receiver.
package multipart

import (
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// IsMultipartFormData reports whether the given Content-Type header value
// names the multipart/form-data media type. Parameters (such as the
// boundary) are stripped first, and the remaining media type is matched
// with the same token-matching logic net/http itself relies on internally
// rather than a hand-rolled substring check.
func IsMultipartFormData(contentType string) bool {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i != -1 {
		mediaType = mediaType[:i]
	}
	return httpguts.HeaderValuesContainsToken([]string{mediaType}, "multipart/form-data")
}

// FirstPart reads a multipart/form-data body up to the beginning of its
// first part and returns that part's headers along with a reader that
// yields only that part's payload. Errors encountered while locating the
// boundary or reading the part are returned as-is; the transfer engine
// treats them as a source error like any other read failure.
func FirstPart(body io.Reader, contentType string) (textproto.MIMEHeader, io.Reader, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to parse multipart content type")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, nil, errors.New("multipart content type is missing a boundary")
	}

	reader := multipart.NewReader(body, boundary)
	part, err := reader.NextPart()
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to read first multipart part")
	}

	return part.Header, part, nil
}

// DeclaredLength extracts a part's declared byte count from its headers, if
// any were sent. Multipart parts rarely carry Content-Length, but some
// clients include one; when absent, the second return value is false and
// the transfer engine omits Content-Length to receivers rather than guess.
func DeclaredLength(header textproto.MIMEHeader) (int64, bool) {
	value := header.Get("Content-Length")
	if value == "" {
		return 0, false
	}
	length, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return length, true
}
