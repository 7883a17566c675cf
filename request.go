package looseml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// defaultMaxInputBytes limits the markup accepted from a request body or a file.
const defaultMaxInputBytes = 8 << 20

// errInputTooLarge is returned when the input exceeds Handler.MaxInputBytes.
var errInputTooLarge = errors.New("input too large")

// ParseRequest is the markup sent by a client and the name of the grammar to parse it with.
// It is the body of JSON requests and of WebSocket messages.
type ParseRequest struct {
	Markup  string `json:"markup"`
	Grammar string `json:"grammar,omitempty"`
}

// readParseRequest extracts the markup from a POST request. JSON bodies are decoded into
// ParseRequest, form bodies use the "markup" and "grammar" fields, and any other body is the
// markup itself with the grammar taken from the "grammar" query parameter.
func readParseRequest(r *http.Request, maxBytes int64) (*ParseRequest, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := io.LimitReader(r.Body, maxBytes+1)

	switch ct {
	case "application/json":
		data, err := readLimited(body, maxBytes)
		if err != nil {
			return nil, err
		}
		var req ParseRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode JSON body: %w", err)
		}
		return &req, nil
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return &ParseRequest{
			Markup:  r.FormValue("markup"),
			Grammar: r.FormValue("grammar"),
		}, nil
	default:
		data, err := readLimited(body, maxBytes)
		if err != nil {
			return nil, err
		}
		return &ParseRequest{
			Markup:  string(data),
			Grammar: r.URL.Query().Get("grammar"),
		}, nil
	}
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, errInputTooLarge
	}
	return data, nil
}
