// Package looseml serves loosely structured markup files as JSON trees. Every response carries the
// parsed tree, the diagnostics of the recovering parser and, when parsing stopped, the error with
// its context.
package looseml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/dpotapov/go-looseml/ml"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// markupExts are the extensions of the files served by the Handler. The XML ones are parsed with
// ml.XMLGrammar by default.
var markupExts = map[string]bool{
	".html":  false,
	".htm":   false,
	".xml":   true,
	".xhtml": true,
}

// wsUpgrader is a Gorilla WebSocket instance, used to respond HTTP requests with WebSocket.
var wsUpgrader = websocket.Upgrader{}

type Handler struct {
	// FileSystem to serve markup files from. GET requests are answered from it.
	FileSystem fs.FS

	// Grammar is used for HTML files and for posted markup. ml.HTMLGrammar is used if nil.
	Grammar *ml.Grammar

	// Grammars are additional grammars clients can select by name with the "grammar" query
	// parameter or request field. The names "html" and "xml" are always known.
	Grammars map[string]*ml.Grammar

	// MaxInputBytes limits the size of parsed input. The default is 8 MiB.
	MaxInputBytes int64

	// OnError is a callback that is called when an error occurs while serving a request.
	// Parse errors are part of the response and are not reported here.
	OnError func(*http.Request, error)

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// init is used to initialize the handler only once.
	init sync.Once

	// logger is a private logger instance that is used to log internal events.
	logger *slog.Logger
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if h.Logger != nil {
			h.logger = h.Logger
		}
		if h.MaxInputBytes <= 0 {
			h.MaxInputBytes = defaultMaxInputBytes
		}
	})

	if err := h.handleRequest(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		h.logger.Error("Serve HTTP request", "url", r.URL.Redacted(), "error", err)

		if h.OnError != nil {
			h.OnError(r, err)
		}
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	if websocket.IsWebSocketUpgrade(r) {
		return h.serveLive(w, r)
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return h.serveFile(w, r)
	case http.MethodPost:
		return h.servePost(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return nil
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) error {
	if h.FileSystem == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}

	urlPath := cleanPath(r.URL.EscapedPath())

	fsPath, err := h.matchFS(urlPath, ".")
	if err != nil {
		return err
	}

	if fsPath == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}

	g, ok := h.grammar(r.URL.Query().Get("grammar"), fsPath)
	if !ok {
		http.Error(w, "unknown grammar", http.StatusBadRequest)
		return nil
	}

	f, err := h.FileSystem.Open(fsPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", fsPath, err)
	}
	defer f.Close()

	src, err := readLimited(io.LimitReader(f, h.MaxInputBytes+1), h.MaxInputBytes)
	if errors.Is(err, errInputTooLarge) {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", fsPath, err)
	}

	h.logger.Debug("Parse file", "path", fsPath)

	return h.writeResult(w, r, h.parse(src, g))
}

func (h *Handler) servePost(w http.ResponseWriter, r *http.Request) error {
	req, err := readParseRequest(r, h.MaxInputBytes)
	var mbe *http.MaxBytesError
	if errors.Is(err, errInputTooLarge) || errors.As(err, &mbe) {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return nil
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	g, ok := h.grammar(req.Grammar, "")
	if !ok {
		http.Error(w, "unknown grammar", http.StatusBadRequest)
		return nil
	}

	return h.writeResult(w, r, h.parse([]byte(req.Markup), g))
}

// serveLive parses every JSON ParseRequest message received on the WebSocket connection and
// answers it with a Result. It stops when the client closes the connection.
func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request) error {
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	sessionID := uuid.New()
	logger := h.logger.With("session", sessionID.String())
	logger.Debug("Live session started", "remote_addr", r.RemoteAddr)

	ws.SetReadLimit(h.MaxInputBytes)

	for {
		var req ParseRequest
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Live session closed")
				return nil
			}
			return fmt.Errorf("read websocket message: %w", err)
		}

		var res *Result
		if g, ok := h.grammar(req.Grammar, ""); ok {
			res = h.parse([]byte(req.Markup), g)
		} else {
			res = NewResult(nil, fmt.Errorf("unknown grammar %q", req.Grammar), nil)
		}

		if err := ws.WriteJSON(res); err != nil {
			return fmt.Errorf("write websocket message: %w", err)
		}
	}
}

func (h *Handler) parse(src []byte, g *ml.Grammar) *Result {
	p := &ml.Parser{Grammar: g, Logger: h.logger}
	page, err := p.Parse(bytes.NewReader(src))
	if err != nil {
		h.logger.Debug("Parse failed", "error", err)
	}
	return NewResult(page, err, src)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res *Result) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if res.Error != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if r.Method == http.MethodHead {
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// grammar selects the grammar by name, or by the extension of fsPath when name is empty.
func (h *Handler) grammar(name, fsPath string) (*ml.Grammar, bool) {
	if g, ok := h.Grammars[name]; ok && name != "" {
		return g, true
	}

	switch strings.ToLower(name) {
	case "":
		if markupExts[strings.ToLower(path.Ext(fsPath))] {
			return ml.XMLGrammar(), true
		}
	case "html":
		return ml.HTMLGrammar(), true
	case "xml":
		return ml.XMLGrammar(), true
	default:
		return nil, false
	}

	if h.Grammar != nil {
		return h.Grammar, true
	}
	return ml.HTMLGrammar(), true
}

// match examples:
// - / -> /index.html
// - /foo -> /foo.html
// - /foo/ -> /foo/index.html
// - /foo/bar.xml -> /foo/bar.xml
// - /foo/.git/config -> no match
func (h *Handler) matchFS(urlPath, dir string) (string, error) {
	if urlPath == "" {
		return "", nil
	}

	entries, err := fs.ReadDir(h.FileSystem, dir)
	if err != nil {
		return "", fmt.Errorf("read directory %s: %w", dir, err)
	}

	seg, rest := firstSegment(urlPath)

	// skip hidden files and directories
	if seg == "" || seg[0] == '.' {
		return "", nil
	}

	if rest != "" {
		if sub := matchDir(seg, dir, entries); sub != "" {
			return h.matchFS(rest, sub)
		}
		return "", nil
	}

	return matchFile(seg, dir, entries), nil
}

func matchDir(seg, dir string, entries []fs.DirEntry) string {
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() == seg {
			return path.Join(dir, seg)
		}
	}
	return "" // no match
}

func matchFile(seg, dir string, entries []fs.DirEntry) string {
	if seg == "/" {
		seg = "index"
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := path.Ext(name)
		if _, ok := markupExts[strings.ToLower(ext)]; !ok {
			continue
		}

		// match by full name or by base name
		if name == seg || strings.TrimSuffix(name, ext) == seg {
			return path.Join(dir, name)
		}
	}

	return "" // no match
}

// cleanPath returns the canonical path for p, eliminating . and .. elements.
//
// Copied from net/http/server.go
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		// Fast path for common case of p being the string we want:
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			np = p
		} else {
			np += "/"
		}
	}
	return np
}

// firstSegment splits path into its first segment, and the rest.
// The path must begin with "/".
// If path consists of only a slash, firstSegment returns ("/", "").
// The segment is returned unescaped, if possible.
//
// Copied from net/http/routing_tree.go.
func firstSegment(path string) (seg, rest string) {
	if path == "/" {
		return "/", ""
	}
	path = path[1:] // drop initial slash
	i := strings.IndexByte(path, '/')
	if i < 0 {
		i = len(path)
	}
	return pathUnescape(path[:i]), path[i:]
}

// Copied from net/http/routing_tree.go.
func pathUnescape(path string) string {
	u, err := url.PathUnescape(path)
	if err != nil {
		// Invalidly escaped path; use the original
		return path
	}
	return u
}
